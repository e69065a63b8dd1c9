// memimport backfills the memory database from a JSONL event log.
//
// Usage: go run ./cmd/memimport [--dry-run] [--batch n] <events.jsonl>
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/extract"
	"github.com/recallhq/recall/internal/graph"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Parse and triage without writing")
	batchSize := flag.Int("batch", 50, "Events per pipeline pass")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: memimport [--dry-run] [--batch n] <events.jsonl>")
		os.Exit(1)
	}

	godotenv.Load()

	configPath := os.Getenv("MEMORYD_CONFIG")
	if configPath == "" {
		configPath = "memoryd.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fail(err)
	}
	if p := os.Getenv("STATE_PATH"); p != "" {
		cfg.StatePath = p
	}

	events, err := readEvents(flag.Arg(0))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Read %d events from %s\n", len(events), flag.Arg(0))

	if *dryRun {
		triage := extract.NewTriage(extract.TriageConfig{
			MinContentLen: cfg.Extraction.MinContentLen,
			NoiseTypes:    cfg.Extraction.NoiseTypes,
			DedupWindow:   cfg.Extraction.DedupWindow,
		})
		passed, skipped := triage.Filter(events)
		fmt.Printf("Dry run: %d would be processed, %d skipped as noise\n", len(passed), len(skipped))
		return
	}

	store, err := graph.Open(cfg.StatePath)
	if err != nil {
		fail(err)
	}
	defer store.Close()

	// Backfill runs heuristic-only: importing months of history through an
	// LLM would be slow and expensive, and a later refresh pass rebuilds the
	// summaries from the graph anyway.
	pipeline, err := extract.NewPipeline(store, nil, extract.Config{
		Triage: extract.TriageConfig{
			MinContentLen: cfg.Extraction.MinContentLen,
			NoiseTypes:    cfg.Extraction.NoiseTypes,
			DedupWindow:   cfg.Extraction.DedupWindow,
		},
		EnableProse: cfg.Extraction.EnableProse,
	})
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	var entities, facts, skipped int
	started := time.Now()

	for start := 0; start < len(events); start += *batchSize {
		end := start + *batchSize
		if end > len(events) {
			end = len(events)
		}
		result, err := pipeline.ProcessEvents(ctx, events[start:end])
		if err != nil {
			fail(err)
		}
		entities += len(result.Entities)
		facts += len(result.Facts)
		skipped += result.SkippedCount
	}

	fmt.Printf("Imported %d events in %s: %d entities, %d facts, %d skipped\n",
		len(events), time.Since(started).Round(time.Millisecond), entities, facts, skipped)
}

func readEvents(path string) ([]graph.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []graph.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		var ev graph.Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
