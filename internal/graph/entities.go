package graph

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SaveEntity inserts or updates an entity. Upsert is keyed by lower-cased
// name: repeated observations of the same entity fold into one row, keeping
// the higher importance and unioning aliases and source event IDs.
func (s *SQLiteStore) SaveEntity(e *Entity) error {
	if e.ID == "" {
		return fmt.Errorf("entity ID is required")
	}
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}

	now := time.Now()
	if e.FirstSeen.IsZero() {
		e.FirstSeen = now
	}
	if e.LastSeen.IsZero() {
		e.LastSeen = now
	}

	existing, err := s.GetEntityByName(e.Name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != e.ID {
		merged := mergeObservation(existing, e)
		e = merged
	}

	_, err = s.db.Exec(`
		INSERT INTO entities (id, name, name_lower, entity_type, entity_type_raw, aliases,
			description, embedding, importance, access_count, first_seen, last_seen, source_event_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_lower) DO UPDATE SET
			entity_type = excluded.entity_type,
			entity_type_raw = excluded.entity_type_raw,
			aliases = excluded.aliases,
			description = excluded.description,
			embedding = excluded.embedding,
			importance = MAX(entities.importance, excluded.importance),
			access_count = excluded.access_count,
			last_seen = excluded.last_seen,
			source_event_ids = excluded.source_event_ids
	`,
		e.ID, e.Name, strings.ToLower(e.Name), string(e.EntityType), e.EntityTypeRaw,
		marshalJSON(e.Aliases), e.Description, marshalJSON(e.Embedding),
		e.Importance, e.AccessCount, e.FirstSeen, e.LastSeen, marshalJSON(e.SourceEventIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

// mergeObservation folds a fresh observation into a persisted entity
func mergeObservation(old, obs *Entity) *Entity {
	out := *old
	if obs.Description != "" {
		out.Description = obs.Description
	}
	if obs.Importance > out.Importance {
		out.Importance = obs.Importance
	}
	out.Aliases = unionStrings(old.Aliases, obs.Aliases)
	out.SourceEventIDs = unionStrings(old.SourceEventIDs, obs.SourceEventIDs)
	if obs.LastSeen.After(out.LastSeen) {
		out.LastSeen = obs.LastSeen
	}
	if len(obs.Embedding) > 0 {
		out.Embedding = obs.Embedding
	}
	return &out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		key := strings.ToLower(s)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		key := strings.ToLower(s)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

const entityColumns = `id, name, entity_type, entity_type_raw, aliases, description,
	embedding, importance, access_count, first_seen, last_seen, source_event_ids`

func scanEntity(row interface{ Scan(...any) error }) (*Entity, error) {
	var e Entity
	var typeRaw, aliases, desc, embedding, sourceIDs sql.NullString
	err := row.Scan(&e.ID, &e.Name, &e.EntityType, &typeRaw, &aliases, &desc,
		&embedding, &e.Importance, &e.AccessCount, &e.FirstSeen, &e.LastSeen, &sourceIDs)
	if err != nil {
		return nil, err
	}
	e.EntityTypeRaw = typeRaw.String
	e.Description = desc.String
	e.Aliases = unmarshalStrings(aliases)
	e.Embedding = unmarshalFloats(embedding)
	e.SourceEventIDs = unmarshalStrings(sourceIDs)
	return &e, nil
}

// GetEntity retrieves an entity by ID; nil when not found
func (s *SQLiteStore) GetEntity(id string) (*Entity, error) {
	row := s.db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// GetEntityByName retrieves an entity by case-insensitive name; nil when not found
func (s *SQLiteStore) GetEntityByName(name string) (*Entity, error) {
	row := s.db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE name_lower = ?`,
		strings.ToLower(name))
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity by name: %w", err)
	}
	return e, nil
}

// FindEntities lists entities matching the query, ordered by importance desc
func (s *SQLiteStore) FindEntities(q EntityQuery) ([]*Entity, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	where := []string{"importance >= ?"}
	args := []any{q.MinImportance}
	if q.Type != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(q.Type))
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(`SELECT `+entityColumns+` FROM entities
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY importance DESC, last_seen DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	return scanEntityRows(rows)
}

// SearchEntities matches the query against name, aliases, and description
func (s *SQLiteStore) SearchEntities(query string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := s.db.Query(`SELECT `+entityColumns+` FROM entities
		WHERE name_lower LIKE ? OR LOWER(COALESCE(aliases, '')) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?
		ORDER BY importance DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	return scanEntityRows(rows)
}

func scanEntityRows(rows *sql.Rows) ([]*Entity, error) {
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IncrementEntityAccess bumps the access counter for retrieval bookkeeping
func (s *SQLiteStore) IncrementEntityAccess(id string) error {
	_, err := s.db.Exec(`UPDATE entities SET access_count = access_count + 1 WHERE id = ?`, id)
	return err
}

// SaveEdge inserts or replaces an edge
func (s *SQLiteStore) SaveEdge(e *Edge) error {
	if e.ID == "" {
		return fmt.Errorf("edge ID is required")
	}
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO edges (id, source_id, target_id, relation, relation_type,
			strength, bidirectional, evidence, is_current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.SourceID, e.TargetID, e.Relation, string(e.RelationType),
		e.Strength, e.Bidirectional, marshalJSON(e.Evidence), e.IsCurrent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

const edgeColumns = `id, source_id, target_id, relation, relation_type, strength,
	bidirectional, evidence, is_current, created_at`

func scanEdgeRows(rows *sql.Rows) ([]*Edge, error) {
	var out []*Edge
	for rows.Next() {
		var e Edge
		var evidence sql.NullString
		err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.RelationType,
			&e.Strength, &e.Bidirectional, &evidence, &e.IsCurrent, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Evidence = unmarshalStrings(evidence)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetEdgesForEntity returns edges touching the entity in the given direction.
// Bidirectional edges match regardless of which endpoint the entity is.
func (s *SQLiteStore) GetEdgesForEntity(id string, dir Direction) ([]*Edge, error) {
	var where string
	var args []any
	switch dir {
	case DirOutgoing:
		where = "source_id = ? OR (bidirectional AND target_id = ?)"
		args = []any{id, id}
	case DirIncoming:
		where = "target_id = ? OR (bidirectional AND source_id = ?)"
		args = []any{id, id}
	default:
		where = "source_id = ? OR target_id = ?"
		args = []any{id, id}
	}

	rows, err := s.db.Query(`SELECT `+edgeColumns+` FROM edges WHERE `+where+
		` ORDER BY strength DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	return scanEdgeRows(rows)
}

// FindEdges lists edges matching the query, ordered by strength desc
func (s *SQLiteStore) FindEdges(q EdgeQuery) ([]*Edge, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	where := []string{"strength >= ?"}
	args := []any{q.MinStrength}
	if q.Relation != "" {
		where = append(where, "relation = ?")
		args = append(args, q.Relation)
	}
	if q.RelationType != "" {
		where = append(where, "relation_type = ?")
		args = append(args, string(q.RelationType))
	}
	args = append(args, limit)

	rows, err := s.db.Query(`SELECT `+edgeColumns+` FROM edges
		WHERE `+strings.Join(where, " AND ")+` ORDER BY strength DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	return scanEdgeRows(rows)
}
