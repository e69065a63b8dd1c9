package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/recallhq/recall/internal/assemble"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/cost"
	"github.com/recallhq/recall/internal/extract"
	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/ollama"
	"github.com/recallhq/recall/internal/spool"
	"github.com/recallhq/recall/internal/staleness"
)

// memoryd reads activity events as JSONL on stdin, runs them through the
// extraction pipeline, keeps the summary tree fresh in the background, and
// prints an assembled context block on demand (a line reading "!context").
func main() {
	log.Println("memoryd - memory consolidation daemon")

	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	configPath := os.Getenv("MEMORYD_CONFIG")
	if configPath == "" {
		configPath = "memoryd.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if p := os.Getenv("STATE_PATH"); p != "" {
		cfg.StatePath = p
	}

	store, err := graph.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	tracker := cost.NewTracker(store, time.Second)
	defer tracker.Close()

	// LLM is optional: without Ollama the pipeline runs heuristic-only and
	// timed refreshes fail per-node without harming anything else.
	var gen extract.Generator
	llm := ollama.NewClient(cfg.Ollama.URL, cfg.Ollama.Model)
	if os.Getenv("MEMORYD_NO_LLM") != "true" {
		gen = llm
	}

	queue, err := staleness.New(store, tracker, refreshFunc(store, llm), staleness.Config{
		AgeFactor:       cfg.Staleness.AgeFactor,
		StaleThreshold:  cfg.Staleness.StaleThreshold,
		RefreshInterval: cfg.Staleness.RefreshInterval.Std(),
		Model:           llm.Model(),
		MaxCPUPercent:   cfg.Staleness.MaxCPUPercent,
	})
	if err != nil {
		log.Fatalf("staleness queue: %v", err)
	}

	root := ensureRoot(store, queue)

	pipeline, err := extract.NewPipeline(store, tracker, extract.Config{
		Triage: extract.TriageConfig{
			MinContentLen: cfg.Extraction.MinContentLen,
			NoiseTypes:    cfg.Extraction.NoiseTypes,
			DedupWindow:   cfg.Extraction.DedupWindow,
		},
		BatchSize:     cfg.Extraction.BatchSize,
		CharsPerToken: cfg.Extraction.CharsPerToken,
		EnableProse:   cfg.Extraction.EnableProse,
		Model:         llm.Model(),
		Generator:     gen,
		Notify: func(count int) {
			queue.NotifyEvents(root.ID, count)
		},
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx, cfg.Staleness.RefreshLimit)
	defer queue.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		os.Stdin.Close()
	}()

	budget := assemble.DefaultBudget()
	if cfg.Assembly.TotalCap > 0 {
		budget.TotalCap = cfg.Assembly.TotalCap
	}
	assembler := assemble.New(store, budget)

	// Events spool up and extraction sees batches: either the spool fills or
	// the oldest pending event ages out via the timer below.
	sp := spool.New(cfg.StatePath, cfg.Extraction.SpoolSize, cfg.Extraction.SpoolMaxAge.Std())

	var recentMu sync.Mutex
	var recent []assemble.RecentEvent

	processBatch := func(batch []graph.Event) {
		if len(batch) == 0 {
			return
		}
		if _, err := pipeline.ProcessEvents(ctx, batch); err != nil {
			log.Printf("[memoryd] process: %v", err)
			return
		}
		recentMu.Lock()
		for _, ev := range batch {
			recent = append(recent, assemble.RecentEvent{
				Timestamp:   ev.Timestamp,
				Description: ev.Content,
			})
		}
		if len(recent) > 50 {
			recent = recent[len(recent)-50:]
		}
		recentMu.Unlock()
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				processBatch(sp.TakeAged())
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "!context" {
			processBatch(sp.Drain()) // context reflects everything seen so far
			recentMu.Lock()
			req := assemble.Request{Recent: append([]assemble.RecentEvent(nil), recent...)}
			recentMu.Unlock()

			built, err := assembler.Assemble(req)
			if err != nil {
				log.Printf("assemble: %v", err)
				continue
			}
			fmt.Println(built.Text)
			log.Printf("[memoryd] context: %d tokens across %d sections", built.TotalTokens, len(built.Sections))
			continue
		}

		var ev graph.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			log.Printf("[memoryd] bad event line: %v", err)
			continue
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}

		processBatch(sp.Add(ev))
	}

	processBatch(sp.Drain())
	log.Println("[memoryd] shutting down")
}

// ensureRoot makes sure the summary tree has its single root node
func ensureRoot(store graph.Store, queue *staleness.Queue) *graph.Summary {
	root, err := store.GetRootSummary()
	if err != nil {
		log.Fatalf("root summary: %v", err)
	}
	if root == nil {
		root = &graph.Summary{
			ID:                 uuid.NewString(),
			NodeType:           graph.NodeRoot,
			NodeKey:            "root",
			Label:              "Everything",
			PriorityMultiplier: 1.0,
			CreatedAt:          time.Now(),
		}
		if err := store.SaveSummary(root); err != nil {
			log.Fatalf("create root summary: %v", err)
		}
		queue.Track(root)
	}
	return root
}

// refreshFunc regenerates a node's content from its children (or, for leaf
// nodes, from the current top entities) via the LLM.
func refreshFunc(store graph.Store, llm *ollama.Client) staleness.RefreshFunc {
	return func(s *graph.Summary) (string, error) {
		var material []string
		children, err := store.GetChildSummaries(s.ID)
		if err != nil {
			return "", err
		}
		for _, c := range children {
			if c.Content != "" {
				material = append(material, fmt.Sprintf("%s: %s", c.Label, c.Content))
			}
		}
		if len(material) == 0 {
			entities, err := store.FindEntities(graph.EntityQuery{MinImportance: 0.4, Limit: 10})
			if err != nil {
				return "", err
			}
			for _, e := range entities {
				material = append(material, fmt.Sprintf("%s (%s): %s", e.Name, e.EntityType, e.Description))
			}
		}
		if len(material) == 0 {
			return s.Content, nil
		}

		prompt := fmt.Sprintf(`Write a concise knowledge summary for %q based on:

%s

Keep it under 150 words. Summary:`, s.Label, strings.Join(material, "\n"))

		return llm.Generate(prompt)
	}
}
