package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/cost"
	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// Generator is the interface for LLM text generation
type Generator interface {
	Generate(prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface
type GeneratorFunc func(prompt string) (string, error)

func (f GeneratorFunc) Generate(prompt string) (string, error) { return f(prompt) }

const extractionPrompt = `You are extracting a knowledge graph from user activity events.

For each event below, identify:
- entities: people, organizations, tools, projects, concepts, locations, websites, files, events
- edges: relationships between the entities you extracted (by name)
- facts: subject-predicate-object statements worth remembering
- topics: short topic labels covering the batch

EVENTS:
%s

Return ONLY one JSON object:
{
  "entities": [{"name":"...","type":"person","description":"...","importance":0.8,"aliases":[]}],
  "edges": [{"source":"...","target":"...","relation":"works on","relationType":"professional","strength":0.8}],
  "facts": [{"subject":"...","predicate":"...","object":"...","factType":"attribute","confidence":0.8}],
  "topics": ["..."]
}

JSON:`

type llmEntity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Importance  float64  `json:"importance"`
	Aliases     []string `json:"aliases"`
}

type llmEdge struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relation     string  `json:"relation"`
	RelationType string  `json:"relationType"`
	Strength     float64 `json:"strength"`
}

type llmFact struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	FactType   string  `json:"factType"`
	Confidence float64 `json:"confidence"`
}

type llmPayload struct {
	Entities []llmEntity `json:"entities"`
	Edges    []llmEdge   `json:"edges"`
	Facts    []llmFact   `json:"facts"`
	Topics   []string    `json:"topics"`
}

// llmExtractor groups events into fixed-size batches and issues one
// generation call per batch
type llmExtractor struct {
	gen           Generator
	model         string
	batchSize     int
	charsPerToken int
	costs         *cost.Tracker
}

// extract runs all batches. A failing or unparseable batch contributes
// nothing and processing continues; the returned count is calls attempted.
func (x *llmExtractor) extract(ctx context.Context, events []graph.Event) (*partial, int) {
	p := newPartial()
	calls := 0

	for start := 0; start < len(events); start += x.batchSize {
		if ctx.Err() != nil {
			logging.Info("extract", "llm extraction cancelled after %d batches", calls)
			break
		}

		end := start + x.batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		prompt := fmt.Sprintf(extractionPrompt, formatBatch(batch))
		response, err := x.gen.Generate(prompt)
		calls++
		if err != nil {
			logging.Warn("extract", "llm batch %d failed: %v", calls, err)
			continue
		}

		if x.costs != nil {
			x.costs.Track(x.model, "extraction",
				cost.EstimateTokens(prompt, x.charsPerToken),
				cost.EstimateTokens(response, x.charsPerToken))
		}

		payload, err := parsePayload(response)
		if err != nil {
			logging.Warn("extract", "llm batch %d unparseable: %v", calls, err)
			continue
		}

		x.fold(p, payload, batch)
	}

	return p, calls
}

func formatBatch(batch []graph.Event) string {
	var b strings.Builder
	for i, ev := range batch {
		fmt.Fprintf(&b, "%d. [%s] (%s) %s\n", i+1, ev.Type,
			eventTime(ev).Format("2006-01-02 15:04"), ev.Content)
	}
	return b.String()
}

// parsePayload pulls one JSON object out of the response via a greedy
// first-{ to last-} match
func parsePayload(response string) (*llmPayload, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(response[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return &payload, nil
}

// fold converts one batch payload into partial-result entries. Edges are
// name-addressed at this point; resolution to entity IDs happens in merge.
func (x *llmExtractor) fold(p *partial, payload *llmPayload, batch []graph.Event) {
	eventIDs := make([]string, len(batch))
	for i, ev := range batch {
		eventIDs[i] = ev.ID
	}
	ts := eventTime(batch[len(batch)-1])

	for _, e := range payload.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		importance := e.Importance
		if importance <= 0 || importance > 1 {
			importance = 0.5
		}
		p.addEntity(&graph.Entity{
			ID:             uuid.NewString(),
			Name:           strings.TrimSpace(e.Name),
			EntityType:     normalizeEntityType(e.Type),
			EntityTypeRaw:  e.Type,
			Description:    e.Description,
			Aliases:        e.Aliases,
			Importance:     importance,
			FirstSeen:      ts,
			LastSeen:       ts,
			SourceEventIDs: eventIDs,
		})
	}

	for _, e := range payload.Edges {
		if e.Source == "" || e.Target == "" || e.Relation == "" {
			continue
		}
		p.namedEdges = append(p.namedEdges, e)
	}

	for _, f := range payload.Facts {
		if f.Subject == "" || f.Object == "" {
			continue
		}
		confidence := f.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		factType := f.FactType
		if factType == "" {
			factType = "statement"
		}
		p.facts = append(p.facts, &graph.Fact{
			ID:             uuid.NewString(),
			Subject:        f.Subject,
			Predicate:      f.Predicate,
			Object:         f.Object,
			FactType:       factType,
			Confidence:     confidence,
			Strength:       confidence,
			ValidFrom:      ts,
			SourceEventIDs: eventIDs,
		})
	}

	p.topics = append(p.topics, payload.Topics...)
}

var entityTypeNames = map[string]graph.EntityType{
	"person": graph.EntityPerson, "organization": graph.EntityOrganization,
	"org": graph.EntityOrganization, "company": graph.EntityOrganization,
	"tool": graph.EntityTool, "technology": graph.EntityTool,
	"project": graph.EntityProject, "concept": graph.EntityConcept,
	"location": graph.EntityLocation, "place": graph.EntityLocation,
	"website": graph.EntityWebsite, "file": graph.EntityFile,
	"event": graph.EntityEvent,
}

func normalizeEntityType(raw string) graph.EntityType {
	if t, ok := entityTypeNames[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return graph.EntityOther
}
