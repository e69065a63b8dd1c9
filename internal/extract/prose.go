package extract

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tsawler/prose/v3"

	"github.com/recallhq/recall/internal/graph"
)

// ProseEnricher adds statistical NER on top of the regex heuristics. Slower
// than the pattern pass but still local; disabled by default.
type ProseEnricher struct{}

// NewProseEnricher creates the prose-backed NER pass
func NewProseEnricher() *ProseEnricher {
	return &ProseEnricher{}
}

func proseLabelToType(label string) graph.EntityType {
	switch strings.ToUpper(label) {
	case "PERSON":
		return graph.EntityPerson
	case "ORG", "NORP":
		return graph.EntityOrganization
	case "GPE", "LOC", "FAC":
		return graph.EntityLocation
	case "PRODUCT":
		return graph.EntityTool
	case "EVENT":
		return graph.EntityEvent
	case "WORK_OF_ART", "LAW", "LANGUAGE":
		return graph.EntityConcept
	default:
		return ""
	}
}

// Enrich runs prose NER over the events and folds any entities it finds into
// the partial result. Numeric and temporal labels are ignored; they carry no
// graph value here.
func (e *ProseEnricher) Enrich(p *partial, events []graph.Event) {
	for _, ev := range events {
		doc, err := prose.NewDocument(ev.Content)
		if err != nil {
			continue
		}
		for _, ent := range doc.Entities() {
			entityType := proseLabelToType(ent.Label)
			if entityType == "" {
				continue
			}
			name := strings.TrimSpace(ent.Text)
			if len(name) < 2 {
				continue
			}
			ts := eventTime(ev)
			p.addEntity(&graph.Entity{
				ID:             uuid.NewString(),
				Name:           name,
				EntityType:     entityType,
				EntityTypeRaw:  ent.Label,
				Importance:     0.5,
				FirstSeen:      ts,
				LastSeen:       ts,
				SourceEventIDs: []string{ev.ID},
			})
		}
	}
}
