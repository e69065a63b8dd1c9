package graph

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const factColumns = `id, subject, predicate, object, fact_type, confidence, strength,
	contradicts, valid_from, valid_to, retrieval_count, use_count, source_event_ids`

// SaveFact inserts or replaces a fact
func (s *SQLiteStore) SaveFact(f *Fact) error {
	if f.ID == "" {
		return fmt.Errorf("fact ID is required")
	}
	if f.ValidFrom.IsZero() {
		f.ValidFrom = time.Now()
	}

	var validTo any
	if f.ValidTo != nil {
		validTo = *f.ValidTo
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO facts (id, subject, predicate, object, fact_type, confidence,
			strength, contradicts, valid_from, valid_to, retrieval_count, use_count, source_event_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.Subject, f.Predicate, f.Object, f.FactType, f.Confidence, f.Strength,
		f.Contradicts, f.ValidFrom, validTo, f.RetrievalCount, f.UseCount,
		marshalJSON(f.SourceEventIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to save fact: %w", err)
	}
	return nil
}

func scanFactRows(rows *sql.Rows) ([]*Fact, error) {
	var out []*Fact
	for rows.Next() {
		var f Fact
		var contradicts, sourceIDs sql.NullString
		var validTo sql.NullTime
		err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.FactType,
			&f.Confidence, &f.Strength, &contradicts, &f.ValidFrom, &validTo,
			&f.RetrievalCount, &f.UseCount, &sourceIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f.Contradicts = contradicts.String
		if validTo.Valid {
			t := validTo.Time
			f.ValidTo = &t
		}
		f.SourceEventIDs = unmarshalStrings(sourceIDs)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// GetFactsForSubject returns current facts about a subject, highest confidence first
func (s *SQLiteStore) GetFactsForSubject(subject string) ([]*Fact, error) {
	rows, err := s.db.Query(`SELECT `+factColumns+` FROM facts
		WHERE LOWER(subject) = ? AND valid_to IS NULL
		ORDER BY confidence DESC`, strings.ToLower(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	return scanFactRows(rows)
}

// SearchFacts matches the query against subject, predicate, and object
func (s *SQLiteStore) SearchFacts(query string, limit int) ([]*Fact, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := s.db.Query(`SELECT `+factColumns+` FROM facts
		WHERE valid_to IS NULL AND (LOWER(subject) LIKE ? OR LOWER(predicate) LIKE ? OR LOWER(object) LIKE ?)
		ORDER BY confidence DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	defer rows.Close()

	return scanFactRows(rows)
}

// FindFacts lists facts matching the query, highest confidence first
func (s *SQLiteStore) FindFacts(q FactQuery) ([]*Fact, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	where := []string{"confidence >= ?", "valid_to IS NULL"}
	args := []any{q.MinConfidence}
	if q.FactType != "" {
		where = append(where, "fact_type = ?")
		args = append(args, q.FactType)
	}
	args = append(args, limit)

	rows, err := s.db.Query(`SELECT `+factColumns+` FROM facts
		WHERE `+strings.Join(where, " AND ")+` ORDER BY confidence DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	return scanFactRows(rows)
}

// IncrementFactRetrieval bumps the retrieval counter for a fact
func (s *SQLiteStore) IncrementFactRetrieval(id string) error {
	_, err := s.db.Exec(`UPDATE facts SET retrieval_count = retrieval_count + 1 WHERE id = ?`, id)
	return err
}
