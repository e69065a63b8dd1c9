package graph

import (
	"database/sql"
	"fmt"
	"time"
)

const summaryColumns = `id, node_type, node_key, label, content, parent_id,
	events_since_refresh, staleness_score, priority_multiplier, total_event_count,
	last_refreshed_at, created_at`

// SaveSummary inserts or replaces a hierarchical summary node. A non-root
// node must reference an existing parent; only one root is allowed.
func (s *SQLiteStore) SaveSummary(sum *Summary) error {
	if sum.ID == "" {
		return fmt.Errorf("summary ID is required")
	}
	if sum.NodeKey == "" {
		return fmt.Errorf("summary node key is required")
	}
	if sum.PriorityMultiplier == 0 {
		sum.PriorityMultiplier = 1.0
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}

	if sum.NodeType == NodeRoot {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM summaries WHERE node_type = ? AND id != ?`,
			string(NodeRoot), sum.ID).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("a root summary already exists")
		}
		if sum.ParentID != "" {
			return fmt.Errorf("root summary cannot have a parent")
		}
	} else if sum.ParentID != "" {
		parent, err := s.GetSummary(sum.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent summary %s does not exist", sum.ParentID)
		}
	}

	var parentID any
	if sum.ParentID != "" {
		parentID = sum.ParentID
	}
	var refreshedAt any
	if !sum.LastRefreshedAt.IsZero() {
		refreshedAt = sum.LastRefreshedAt
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO summaries (id, node_type, node_key, label, content, parent_id,
			events_since_refresh, staleness_score, priority_multiplier, total_event_count,
			last_refreshed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sum.ID, string(sum.NodeType), sum.NodeKey, sum.Label, sum.Content, parentID,
		sum.EventsSinceRefresh, sum.StalenessScore, sum.PriorityMultiplier,
		sum.TotalEventCount, refreshedAt, sum.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func scanSummary(row interface{ Scan(...any) error }) (*Summary, error) {
	var sum Summary
	var content, parentID sql.NullString
	var refreshedAt sql.NullTime
	err := row.Scan(&sum.ID, &sum.NodeType, &sum.NodeKey, &sum.Label, &content, &parentID,
		&sum.EventsSinceRefresh, &sum.StalenessScore, &sum.PriorityMultiplier,
		&sum.TotalEventCount, &refreshedAt, &sum.CreatedAt)
	if err != nil {
		return nil, err
	}
	sum.Content = content.String
	sum.ParentID = parentID.String
	if refreshedAt.Valid {
		sum.LastRefreshedAt = refreshedAt.Time
	}
	return &sum, nil
}

func (s *SQLiteStore) loadChildIDs(sum *Summary) error {
	rows, err := s.db.Query(`SELECT id FROM summaries WHERE parent_id = ?`, sum.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		sum.ChildIDs = append(sum.ChildIDs, id)
	}
	return rows.Err()
}

// GetSummary retrieves a summary node by ID; nil when not found
func (s *SQLiteStore) GetSummary(id string) (*Summary, error) {
	row := s.db.QueryRow(`SELECT `+summaryColumns+` FROM summaries WHERE id = ?`, id)
	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	if err := s.loadChildIDs(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// GetSummaryByKey retrieves a summary node by its unique key; nil when not found
func (s *SQLiteStore) GetSummaryByKey(key string) (*Summary, error) {
	row := s.db.QueryRow(`SELECT `+summaryColumns+` FROM summaries WHERE node_key = ?`, key)
	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary by key: %w", err)
	}
	if err := s.loadChildIDs(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *SQLiteStore) querySummaries(query string, args ...any) ([]*Summary, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, sum := range out {
		if err := s.loadChildIDs(sum); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetChildSummaries returns the direct children of a node
func (s *SQLiteStore) GetChildSummaries(parentID string) ([]*Summary, error) {
	return s.querySummaries(`SELECT `+summaryColumns+` FROM summaries
		WHERE parent_id = ? ORDER BY label`, parentID)
}

// GetRootSummary returns the single root node; nil when the tree is empty
func (s *SQLiteStore) GetRootSummary() (*Summary, error) {
	row := s.db.QueryRow(`SELECT `+summaryColumns+` FROM summaries WHERE node_type = ?`,
		string(NodeRoot))
	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get root summary: %w", err)
	}
	if err := s.loadChildIDs(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// GetStalestSummaries returns nodes ordered by staleness score, highest first
func (s *SQLiteStore) GetStalestSummaries(limit int) ([]*Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.querySummaries(`SELECT `+summaryColumns+` FROM summaries
		ORDER BY staleness_score DESC LIMIT ?`, limit)
}

// IncrementSummaryEvents adds to a node's unrefreshed and total event counters
func (s *SQLiteStore) IncrementSummaryEvents(id string, count int) error {
	res, err := s.db.Exec(`UPDATE summaries SET
		events_since_refresh = events_since_refresh + ?,
		total_event_count = total_event_count + ?
		WHERE id = ?`, count, count, id)
	if err != nil {
		return fmt.Errorf("failed to increment summary events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("summary %s not found", id)
	}
	return nil
}

// UpdateSummaryStaleness persists a recomputed staleness score
func (s *SQLiteStore) UpdateSummaryStaleness(id string, score float64) error {
	_, err := s.db.Exec(`UPDATE summaries SET staleness_score = ? WHERE id = ?`, score, id)
	return err
}

// UpdateSummaryContent writes regenerated content and atomically resets the
// refresh counters, stamping last_refreshed_at.
func (s *SQLiteStore) UpdateSummaryContent(id, content string, embedding []float32) error {
	res, err := s.db.Exec(`UPDATE summaries SET
		content = ?,
		embedding = COALESCE(?, embedding),
		events_since_refresh = 0,
		staleness_score = 0,
		last_refreshed_at = ?
		WHERE id = ?`, content, marshalJSON(embedding), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update summary content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("summary %s not found", id)
	}
	return nil
}
