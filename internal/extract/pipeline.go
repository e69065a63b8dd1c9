package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/recallhq/recall/internal/cost"
	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// Config tunes the extraction pipeline
type Config struct {
	Triage        TriageConfig
	BatchSize     int    // events per LLM call (default 5)
	CharsPerToken int    // token estimator ratio (default 4)
	Model         string // model name for cost accounting
	EnableProse   bool   // run statistical NER on top of the regex pass

	// Generator is the optional LLM call. When nil the pipeline silently
	// runs heuristic-only; absence is configuration, not an error.
	Generator Generator

	// Notify receives the count of events that passed triage after each
	// successful persistence pass, so the host can feed the staleness
	// queue. May be nil.
	Notify func(eventCount int)
}

// Pipeline is the event-to-knowledge extraction pipeline. One instance owns
// its triage dedup window; it is not safe for concurrent ProcessEvents calls.
type Pipeline struct {
	triage    *Triage
	heuristic *Heuristic
	prose     *ProseEnricher
	llm       *llmExtractor
	store     graph.Store
	notify    func(int)
}

// NewPipeline wires a pipeline against a store. costs may be nil when cost
// accounting is not wanted (heuristic-only hosts).
func NewPipeline(store graph.Store, costs *cost.Tracker, cfg Config) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = cost.DefaultCharsPerToken
	}

	p := &Pipeline{
		triage:    NewTriage(cfg.Triage),
		heuristic: NewHeuristic(),
		store:     store,
		notify:    cfg.Notify,
	}
	if cfg.EnableProse {
		p.prose = NewProseEnricher()
	}
	if cfg.Generator != nil {
		p.llm = &llmExtractor{
			gen:           cfg.Generator,
			model:         cfg.Model,
			batchSize:     cfg.BatchSize,
			charsPerToken: cfg.CharsPerToken,
			costs:         costs,
		}
	}
	return p, nil
}

// ProcessEvents triages a batch of events, extracts knowledge from the
// survivors, merges the heuristic and LLM passes, and persists the result.
// Extraction is best-effort enrichment: individual failures degrade the
// result, they never surface as an error from here.
func (p *Pipeline) ProcessEvents(ctx context.Context, events []graph.Event) (*Result, error) {
	started := time.Now()

	passed, skipped := p.triage.Filter(events)

	heur := p.heuristic.Extract(passed)
	if p.prose != nil {
		p.prose.Enrich(heur, passed)
	}

	var llmPart *partial
	llmCalls := 0
	if p.llm != nil && len(passed) > 0 {
		llmPart, llmCalls = p.llm.extract(ctx, passed)
	}

	result := mergeResults(heur, llmPart)
	result.SkippedCount = len(skipped)
	result.LLMCallCount = llmCalls

	p.persist(result)

	if p.notify != nil && len(passed) > 0 {
		p.notify(len(passed))
	}

	result.DurationMs = time.Since(started).Milliseconds()
	logging.Info("extract", "processed %d events: %d entities, %d edges, %d facts (%d skipped, %d llm calls, %dms)",
		len(events), len(result.Entities), len(result.Edges), len(result.Facts),
		result.SkippedCount, result.LLMCallCount, result.DurationMs)

	return result, nil
}

// persist writes the merged result through the store contract. The store
// upserts entities by name and may fold an observation into an existing row
// with a different ID, so edge endpoints are remapped to the persisted IDs.
func (p *Pipeline) persist(result *Result) {
	idMap := make(map[string]string, len(result.Entities))

	for _, e := range result.Entities {
		if err := p.store.SaveEntity(e); err != nil {
			logging.Warn("extract", "failed to save entity %q: %v", e.Name, err)
			continue
		}
		persisted, err := p.store.GetEntityByName(e.Name)
		if err != nil || persisted == nil {
			idMap[e.ID] = e.ID
			continue
		}
		idMap[e.ID] = persisted.ID
	}

	for _, edge := range result.Edges {
		if mapped, ok := idMap[edge.SourceID]; ok {
			edge.SourceID = mapped
		}
		if mapped, ok := idMap[edge.TargetID]; ok {
			edge.TargetID = mapped
		}
		if err := p.store.SaveEdge(edge); err != nil {
			logging.Warn("extract", "failed to save edge %s: %v", edge.Relation, err)
		}
	}

	for _, fact := range result.Facts {
		if err := p.store.SaveFact(fact); err != nil {
			logging.Warn("extract", "failed to save fact %s/%s: %v", fact.Subject, fact.Predicate, err)
		}
	}
}
