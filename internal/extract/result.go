package extract

import (
	"github.com/recallhq/recall/internal/graph"
)

// Result is the outcome of one ProcessEvents invocation
type Result struct {
	Entities []*graph.Entity
	Edges    []*graph.Edge
	Facts    []*graph.Fact
	Topics   []string

	// Observability counters
	SkippedCount int
	LLMCallCount int
	DurationMs   int64
}

// partial is an intermediate extraction result from one source
// (heuristic or LLM) before merging
type partial struct {
	entities map[string]*graph.Entity // keyed by lower-cased name
	order    []string                 // insertion order of keys
	edges    []*graph.Edge
	facts    []*graph.Fact
	topics   []string

	// namedEdges are LLM edges addressed by entity name, resolved to IDs
	// during merge
	namedEdges []llmEdge
}

func newPartial() *partial {
	return &partial{entities: make(map[string]*graph.Entity)}
}

func (p *partial) addEntity(e *graph.Entity) *graph.Entity {
	key := lowerKey(e.Name)
	if existing, ok := p.entities[key]; ok {
		if e.Description != "" && existing.Description == "" {
			existing.Description = e.Description
		}
		if e.Importance > existing.Importance {
			existing.Importance = e.Importance
		}
		existing.Aliases = unionFold(existing.Aliases, e.Aliases)
		existing.SourceEventIDs = unionFold(existing.SourceEventIDs, e.SourceEventIDs)
		if e.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = e.LastSeen
		}
		return existing
	}
	p.entities[key] = e
	p.order = append(p.order, key)
	return e
}

func (p *partial) entityList() []*graph.Entity {
	out := make([]*graph.Entity, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.entities[key])
	}
	return out
}
