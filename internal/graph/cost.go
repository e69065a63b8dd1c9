package graph

import (
	"fmt"
	"time"
)

// SaveCostEntry appends one LLM call to the cost ledger
func (s *SQLiteStore) SaveCostEntry(c *CostEntry) error {
	if c.ID == "" {
		return fmt.Errorf("cost entry ID is required")
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO cost_entries (id, model, source, input_tokens, output_tokens, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Model, c.Source, c.InputTokens, c.OutputTokens, c.Cost, c.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save cost entry: %w", err)
	}
	return nil
}

// GetCostReport aggregates ledger entries in [from, to)
func (s *SQLiteStore) GetCostReport(from, to time.Time) (*CostReport, error) {
	report := &CostReport{From: from, To: to, ByModel: make(map[string]float64)}

	rows, err := s.db.Query(`
		SELECT model, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost)
		FROM cost_entries WHERE timestamp >= ? AND timestamp < ?
		GROUP BY model
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var calls, inTok, outTok int
		var cost float64
		if err := rows.Scan(&model, &calls, &inTok, &outTok, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan cost row: %w", err)
		}
		report.Calls += calls
		report.InputTokens += inTok
		report.OutputTokens += outTok
		report.TotalCost += cost
		report.ByModel[model] += cost
	}
	return report, rows.Err()
}

// GetTotalCostToday sums the ledger since local midnight
func (s *SQLiteStore) GetTotalCostToday() (float64, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(cost), 0) FROM cost_entries WHERE timestamp >= ?`,
		midnight).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum cost: %w", err)
	}
	return total, nil
}

// SaveLearningRecord stores an insight about working with the user
func (s *SQLiteStore) SaveLearningRecord(r *LearningRecord) error {
	if r.ID == "" {
		return fmt.Errorf("learning record ID is required")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO learning_records (id, type, content, sentiment, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Type, r.Content, r.Sentiment, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save learning record: %w", err)
	}
	return nil
}

// GetLearningRecords lists records newest-first
func (s *SQLiteStore) GetLearningRecords(q LearningQuery) ([]*LearningRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, type, content, sentiment, timestamp FROM learning_records`
	var args []any
	if q.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, q.Type)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning records: %w", err)
	}
	defer rows.Close()

	var out []*LearningRecord
	for rows.Next() {
		var r LearningRecord
		if err := rows.Scan(&r.ID, &r.Type, &r.Content, &r.Sentiment, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
