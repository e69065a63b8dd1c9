package extract

import (
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// mergeResults combines the heuristic and LLM partials. Entities are keyed by
// lower-cased name; on conflict the LLM-derived description and type win when
// non-empty, importance takes the maximum, and aliases and source event IDs
// are unioned. Edges and facts are concatenated without cross-source
// deduplication; duplicates across the two passes are accepted.
func mergeResults(heur, llm *partial) *Result {
	merged := newPartial()

	for _, key := range heur.order {
		merged.entities[key] = heur.entities[key]
		merged.order = append(merged.order, key)
	}

	if llm != nil {
		for _, key := range llm.order {
			le := llm.entities[key]
			he, ok := merged.entities[key]
			if !ok {
				merged.entities[key] = le
				merged.order = append(merged.order, key)
				continue
			}
			// LLM fields preferred; heuristic provenance preserved
			if le.Description != "" {
				he.Description = le.Description
			}
			if le.EntityType != graph.EntityOther && le.EntityType != "" {
				he.EntityType = le.EntityType
				he.EntityTypeRaw = le.EntityTypeRaw
			}
			if le.Importance > he.Importance {
				he.Importance = le.Importance
			}
			he.Aliases = unionFold(he.Aliases, le.Aliases)
			he.SourceEventIDs = unionFold(he.SourceEventIDs, le.SourceEventIDs)
			if le.LastSeen.After(he.LastSeen) {
				he.LastSeen = le.LastSeen
			}
		}
	}

	out := &Result{
		Entities: merged.entityList(),
		Edges:    heur.edges,
		Facts:    heur.facts,
		Topics:   heur.topics,
	}

	if llm != nil {
		out.Facts = append(out.Facts, llm.facts...)
		out.Topics = append(out.Topics, llm.topics...)
		out.Edges = append(out.Edges, resolveNamedEdges(llm.namedEdges, merged)...)
	}

	return out
}

// resolveNamedEdges turns name-addressed LLM edges into ID-addressed edges
// against the merged entity set. Edges naming unknown entities are dropped.
func resolveNamedEdges(named []llmEdge, merged *partial) []*graph.Edge {
	var out []*graph.Edge
	for _, ne := range named {
		src, ok := merged.entities[lowerKey(ne.Source)]
		if !ok {
			logging.Debug("extract", "dropping edge with unknown source %q", ne.Source)
			continue
		}
		dst, ok := merged.entities[lowerKey(ne.Target)]
		if !ok {
			logging.Debug("extract", "dropping edge with unknown target %q", ne.Target)
			continue
		}
		strength := ne.Strength
		if strength <= 0 || strength > 1 {
			strength = 0.5
		}
		relType := graph.RelationType(ne.RelationType)
		if !validRelationType(relType) {
			relType = ClassifyRelation(ne.Relation)
		}
		out = append(out, &graph.Edge{
			ID:           uuid.NewString(),
			SourceID:     src.ID,
			TargetID:     dst.ID,
			Relation:     ne.Relation,
			RelationType: relType,
			Strength:     strength,
			IsCurrent:    true,
			CreatedAt:    time.Now(),
		})
	}
	return out
}

func validRelationType(t graph.RelationType) bool {
	switch t {
	case graph.RelProfessional, graph.RelSocial, graph.RelTechnical,
		graph.RelFinancial, graph.RelSpatial, graph.RelTemporal,
		graph.RelCausal, graph.RelOther:
		return true
	}
	return false
}
