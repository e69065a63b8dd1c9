package extract

import (
	"testing"
	"time"

	"github.com/recallhq/recall/internal/graph"
)

func findEntity(p *partial, name string) *graph.Entity {
	e, _ := p.entities[lowerKey(name)]
	return e
}

func TestHeuristicEntityDetection(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name     string
		content  string
		wantName string
		wantType graph.EntityType
	}{
		{"url", "Check https://github.com/recallhq/recall for the code", "github.com", graph.EntityWebsite},
		{"file path", "Edited src/pipeline.go before lunch", "pipeline.go", graph.EntityFile},
		{"email", "Ping alice@example.com about the invoice", "alice", graph.EntityPerson},
		{"mention", "Thanks @bob for the quick review", "bob", graph.EntityPerson},
		{"org by suffix", "Acme Corp announced quarterly results", "Acme Corp", graph.EntityOrganization},
		{"org by acronym", "The NASA Mission briefing went long", "NASA Mission", graph.EntityOrganization},
		{"person fallback", "Talked to John Smith about hiring", "John Smith", graph.EntityPerson},
		{"project keyword", "Kickoff for Project Atlas went well", "Project Atlas", graph.EntityProject},
		{"event keyword", "Notes from the Platform Summit yesterday", "Platform Summit", graph.EntityEvent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := h.Extract([]graph.Event{makeEvent("e1", "note", tc.content)})
			e := findEntity(p, tc.wantName)
			if e == nil {
				t.Fatalf("entity %q not found; got %d entities", tc.wantName, len(p.entities))
			}
			if e.EntityType != tc.wantType {
				t.Errorf("type = %s, want %s", e.EntityType, tc.wantType)
			}
		})
	}
}

func TestHeuristicCoalescingByName(t *testing.T) {
	h := NewHeuristic()

	events := []graph.Event{
		makeEvent("e1", "note", "Acme Corp shipped a new release"),
		makeEvent("e2", "note", "Meeting with ACME CORP next week"),
	}
	p := h.Extract(events)

	e := findEntity(p, "acme corp")
	if e == nil {
		t.Fatal("coalesced entity not found")
	}
	count := 0
	for key := range p.entities {
		if key == "acme corp" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one coalesced entity, got %d", count)
	}
	if len(e.SourceEventIDs) != 2 {
		t.Errorf("source event IDs = %v, want both events", e.SourceEventIDs)
	}
}

func TestHeuristicFactPatterns(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		content        string
		wantPredicate  string
		wantObject     string
		wantConfidence float64
	}{
		{"Sarah uses Postgres", "uses", "Postgres", 0.7},
		{"Marcus works on Project Atlas", "works on", "Project Atlas", 0.7},
		{"Kubernetes is a container orchestration platform", "is", "container orchestration platform", 0.6},
	}

	for _, tc := range tests {
		t.Run(tc.wantPredicate, func(t *testing.T) {
			facts := h.extractFacts(makeEvent("e1", "note", tc.content))
			if len(facts) == 0 {
				t.Fatal("no facts extracted")
			}
			f := facts[0]
			if f.Predicate != tc.wantPredicate {
				t.Errorf("predicate = %q, want %q", f.Predicate, tc.wantPredicate)
			}
			if f.Object != tc.wantObject {
				t.Errorf("object = %q, want %q", f.Object, tc.wantObject)
			}
			if f.Confidence != tc.wantConfidence {
				t.Errorf("confidence = %v, want %v", f.Confidence, tc.wantConfidence)
			}
		})
	}
}

func TestClassifyRelation(t *testing.T) {
	tests := []struct {
		predicate string
		want      graph.RelationType
	}{
		{"works at", graph.RelProfessional},
		{"uses", graph.RelTechnical},
		{"friend of", graph.RelSocial},
		{"paid for", graph.RelFinancial},
		{"located in", graph.RelSpatial},
		{"scheduled before", graph.RelTemporal},
		{"causes", graph.RelCausal},
		{"resembles", graph.RelOther},
	}

	for _, tc := range tests {
		if got := ClassifyRelation(tc.predicate); got != tc.want {
			t.Errorf("ClassifyRelation(%q) = %s, want %s", tc.predicate, got, tc.want)
		}
	}
}

func TestHeuristicSameEventEdges(t *testing.T) {
	h := NewHeuristic()

	// Subject and object are both capitalized sequences in the same event,
	// so a fact-derived edge should link them.
	p := h.Extract([]graph.Event{makeEvent("e1", "note", "Acme Corp uses Amazon Web Services")})

	if len(p.edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(p.edges))
	}
	edge := p.edges[0]
	src := findEntity(p, "Acme Corp")
	dst := findEntity(p, "Amazon Web Services")
	if edge.SourceID != src.ID || edge.TargetID != dst.ID {
		t.Errorf("edge endpoints wrong: %s -> %s", edge.SourceID, edge.TargetID)
	}
	if edge.RelationType != graph.RelTechnical {
		t.Errorf("relation type = %s, want technical", edge.RelationType)
	}

	// Entities seen in different events never get a heuristic edge
	p2 := h.Extract([]graph.Event{
		makeEvent("e2", "note", "Acme Corp had a good quarter"),
		makeEvent("e3", "note", "Amazon Web Services raised prices"),
	})
	if len(p2.edges) != 0 {
		t.Errorf("cross-event edges = %d, want 0", len(p2.edges))
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	h := NewHeuristic()
	ev := graph.Event{
		ID: "e1", Type: "note",
		Content:   "John Smith works on Project Atlas at Acme Corp",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	a := h.Extract([]graph.Event{ev})
	b := h.Extract([]graph.Event{ev})
	if len(a.entities) != len(b.entities) || len(a.facts) != len(b.facts) {
		t.Errorf("extraction not deterministic: %d/%d entities, %d/%d facts",
			len(a.entities), len(b.entities), len(a.facts), len(b.facts))
	}
}
