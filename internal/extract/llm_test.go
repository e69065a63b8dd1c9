package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/recallhq/recall/internal/graph"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		entities int
	}{
		{
			name:     "bare JSON",
			response: `{"entities":[{"name":"Atlas","type":"project"}],"edges":[],"facts":[],"topics":[]}`,
			entities: 1,
		},
		{
			name:     "JSON wrapped in chatter",
			response: "Sure, here is the graph:\n```json\n{\"entities\":[{\"name\":\"Atlas\"}],\"edges\":[],\"facts\":[],\"topics\":[]}\n```\nHope that helps!",
			entities: 1,
		},
		{
			name:     "no JSON at all",
			response: "I cannot help with that.",
			wantErr:  true,
		},
		{
			name:     "braces in wrong order",
			response: "} nothing useful {",
			wantErr:  true,
		},
		{
			name:     "invalid JSON between braces",
			response: "{not json}",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parsePayload(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePayload: %v", err)
			}
			if len(payload.Entities) != tt.entities {
				t.Errorf("entities = %d, want %d", len(payload.Entities), tt.entities)
			}
		})
	}
}

func TestFoldDefaultsAndFilters(t *testing.T) {
	x := &llmExtractor{}
	p := newPartial()
	batch := []graph.Event{makeEvent("e1", "note", "some content here")}

	payload := &llmPayload{
		Entities: []llmEntity{
			{Name: "Atlas", Type: "project", Importance: 0.9},
			{Name: "  ", Type: "person"},                  // blank name dropped
			{Name: "Mystery", Type: "spaceship"},          // unknown type normalized
			{Name: "Overweighted", Importance: 7.0},       // out-of-range importance defaulted
		},
		Edges: []llmEdge{
			{Source: "Atlas", Target: "Mystery", Relation: "related to"},
			{Source: "", Target: "Mystery", Relation: "broken"}, // missing endpoint dropped
		},
		Facts: []llmFact{
			{Subject: "Atlas", Predicate: "is", Object: "a project", Confidence: 2.5},
			{Subject: "", Predicate: "is", Object: "nothing"}, // missing subject dropped
		},
		Topics: []string{"infrastructure"},
	}
	x.fold(p, payload, batch)

	entities := p.entityList()
	if len(entities) != 3 {
		t.Fatalf("entities = %d, want 3", len(entities))
	}
	byName := make(map[string]*graph.Entity)
	for _, e := range entities {
		byName[e.Name] = e
	}
	if byName["Mystery"].EntityType != graph.EntityOther {
		t.Errorf("unknown type = %s, want other", byName["Mystery"].EntityType)
	}
	if byName["Mystery"].EntityTypeRaw != "spaceship" {
		t.Errorf("raw type = %q, want preserved", byName["Mystery"].EntityTypeRaw)
	}
	if byName["Overweighted"].Importance != 0.5 {
		t.Errorf("importance = %v, want defaulted 0.5", byName["Overweighted"].Importance)
	}

	if len(p.namedEdges) != 1 {
		t.Errorf("named edges = %d, want 1", len(p.namedEdges))
	}
	if len(p.facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(p.facts))
	}
	if p.facts[0].Confidence != 0.5 {
		t.Errorf("confidence = %v, want defaulted 0.5", p.facts[0].Confidence)
	}
	if p.facts[0].FactType != "statement" {
		t.Errorf("fact type = %q, want statement default", p.facts[0].FactType)
	}
}

func TestFormatBatch(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	batch := []graph.Event{
		{ID: "e1", Type: "note", Content: "first", Timestamp: ts},
		{ID: "e2", Type: "browse", Content: "second", Timestamp: ts},
	}

	got := formatBatch(batch)
	if !strings.Contains(got, "1. [note] (2026-03-10 14:30) first") {
		t.Errorf("missing first line:\n%s", got)
	}
	if !strings.Contains(got, "2. [browse]") {
		t.Errorf("missing second line:\n%s", got)
	}
}

func TestNormalizeEntityType(t *testing.T) {
	tests := []struct {
		raw  string
		want graph.EntityType
	}{
		{"person", graph.EntityPerson},
		{"Company", graph.EntityOrganization},
		{" TECHNOLOGY ", graph.EntityTool},
		{"place", graph.EntityLocation},
		{"gibberish", graph.EntityOther},
		{"", graph.EntityOther},
	}
	for _, tt := range tests {
		if got := normalizeEntityType(tt.raw); got != tt.want {
			t.Errorf("normalizeEntityType(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
