package graph

import (
	"time"
)

// EntityType categorizes extracted entities
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityTool         EntityType = "tool"
	EntityProject      EntityType = "project"
	EntityConcept      EntityType = "concept"
	EntityLocation     EntityType = "location"
	EntityWebsite      EntityType = "website"
	EntityFile         EntityType = "file"
	EntityEvent        EntityType = "event"
	EntityOther        EntityType = "other"
)

// RelationType is a coarse classification of an edge's relation string
type RelationType string

const (
	RelProfessional RelationType = "professional"
	RelSocial       RelationType = "social"
	RelTechnical    RelationType = "technical"
	RelFinancial    RelationType = "financial"
	RelSpatial      RelationType = "spatial"
	RelTemporal     RelationType = "temporal"
	RelCausal       RelationType = "causal"
	RelOther        RelationType = "other"
)

// NodeType identifies a hierarchical summary node's level
type NodeType string

const (
	NodeRoot   NodeType = "root"
	NodeDomain NodeType = "domain"
	NodeTopic  NodeType = "topic"
	NodeEntity NodeType = "entity"
)

// Event is an immutable input unit for extraction
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Entity is a node in the knowledge graph. Identity during extraction-time
// merge is the lower-cased name; importance decay happens outside this core.
type Entity struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	EntityType     EntityType `json:"entity_type"`
	EntityTypeRaw  string     `json:"entity_type_raw,omitempty"` // original label before normalization
	Aliases        []string   `json:"aliases,omitempty"`
	Description    string     `json:"description,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	Importance     float64    `json:"importance"` // [0,1]
	AccessCount    int        `json:"access_count"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastSeen       time.Time  `json:"last_seen"`
	SourceEventIDs []string   `json:"source_event_ids,omitempty"`
}

// Edge is a directed relation between two entities. Undirected semantics use
// the Bidirectional flag rather than a mirrored row.
type Edge struct {
	ID            string       `json:"id"`
	SourceID      string       `json:"source_id"`
	TargetID      string       `json:"target_id"`
	Relation      string       `json:"relation"`
	RelationType  RelationType `json:"relation_type"`
	Strength      float64      `json:"strength"` // [0,1]
	Bidirectional bool         `json:"bidirectional"`
	Evidence      []string     `json:"evidence,omitempty"`
	IsCurrent     bool         `json:"is_current"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Fact is a subject-predicate-object triple with confidence and temporal
// validity. A superseding fact points back via Contradicts.
type Fact struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	Predicate      string     `json:"predicate"`
	Object         string     `json:"object"`
	FactType       string     `json:"fact_type"`
	Confidence     float64    `json:"confidence"` // [0,1]
	Strength       float64    `json:"strength"`
	Contradicts    string     `json:"contradicts,omitempty"`
	ValidFrom      time.Time  `json:"valid_from"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	RetrievalCount int        `json:"retrieval_count"`
	UseCount       int        `json:"use_count"`
	SourceEventIDs []string   `json:"source_event_ids,omitempty"`
}

// Summary is a node in the hierarchical summary tree. Exactly one node has
// NodeType root and an empty ParentID; every other node's ParentID must
// reference an existing node.
type Summary struct {
	ID                 string    `json:"id"`
	NodeType           NodeType  `json:"node_type"`
	NodeKey            string    `json:"node_key"` // unique
	Label              string    `json:"label"`
	Content            string    `json:"content"`
	ParentID           string    `json:"parent_id,omitempty"`
	ChildIDs           []string  `json:"child_ids,omitempty"`
	EventsSinceRefresh int       `json:"events_since_refresh"`
	StalenessScore     float64   `json:"staleness_score"`
	PriorityMultiplier float64   `json:"priority_multiplier"`
	TotalEventCount    int       `json:"total_event_count"`
	LastRefreshedAt    time.Time `json:"last_refreshed_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// CostEntry records one LLM call in the append-only cost ledger
type CostEntry struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	Source       string    `json:"source"` // which subsystem issued the call
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"` // USD
	Timestamp    time.Time `json:"timestamp"`
}

// LearningRecord captures something the system learned about working with
// the user, surfaced later in the reflection section of assembled context.
type LearningRecord struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // insight, correction, preference
	Content   string    `json:"content"`
	Sentiment string    `json:"sentiment"` // positive, negative, neutral
	Timestamp time.Time `json:"timestamp"`
}
