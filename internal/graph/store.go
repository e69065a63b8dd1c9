package graph

import (
	"time"
)

// Direction selects which edges of an entity to load
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// EntityQuery filters FindEntities
type EntityQuery struct {
	Type          EntityType
	MinImportance float64
	Limit         int
	Offset        int
}

// EdgeQuery filters FindEdges
type EdgeQuery struct {
	Relation     string
	RelationType RelationType
	MinStrength  float64
	Limit        int
}

// FactQuery filters FindFacts
type FactQuery struct {
	FactType      string
	MinConfidence float64
	Limit         int
}

// LearningQuery filters GetLearningRecords
type LearningQuery struct {
	Type  string
	Limit int
}

// CostReport aggregates cost entries over a time window
type CostReport struct {
	From         time.Time
	To           time.Time
	TotalCost    float64
	InputTokens  int
	OutputTokens int
	Calls        int
	ByModel      map[string]float64
}

// Store is the persistence contract the memory core consumes. Implementations
// own durability and housekeeping (expiry, decay); the core never deletes.
type Store interface {
	// Entities
	SaveEntity(e *Entity) error
	GetEntity(id string) (*Entity, error)
	GetEntityByName(name string) (*Entity, error)
	FindEntities(q EntityQuery) ([]*Entity, error)
	SearchEntities(query string, limit int) ([]*Entity, error)
	IncrementEntityAccess(id string) error

	// Edges
	SaveEdge(e *Edge) error
	GetEdgesForEntity(id string, dir Direction) ([]*Edge, error)
	FindEdges(q EdgeQuery) ([]*Edge, error)

	// Facts
	SaveFact(f *Fact) error
	GetFactsForSubject(subject string) ([]*Fact, error)
	SearchFacts(query string, limit int) ([]*Fact, error)
	FindFacts(q FactQuery) ([]*Fact, error)
	IncrementFactRetrieval(id string) error

	// Hierarchical summaries
	SaveSummary(s *Summary) error
	GetSummary(id string) (*Summary, error)
	GetSummaryByKey(key string) (*Summary, error)
	GetChildSummaries(parentID string) ([]*Summary, error)
	GetRootSummary() (*Summary, error)
	GetStalestSummaries(limit int) ([]*Summary, error)
	IncrementSummaryEvents(id string, count int) error
	UpdateSummaryStaleness(id string, score float64) error
	// UpdateSummaryContent atomically writes new content, zeroes
	// events_since_refresh and staleness_score, and stamps last_refreshed_at.
	UpdateSummaryContent(id, content string, embedding []float32) error

	// Cost ledger and learning records
	SaveCostEntry(c *CostEntry) error
	GetCostReport(from, to time.Time) (*CostReport, error)
	GetTotalCostToday() (float64, error)
	SaveLearningRecord(r *LearningRecord) error
	GetLearningRecords(q LearningQuery) ([]*LearningRecord, error)
}
