package spool

import (
	"fmt"
	"testing"
	"time"

	"github.com/recallhq/recall/internal/graph"
)

func event(id string, ts time.Time) graph.Event {
	return graph.Event{ID: id, Type: "note", Content: "content " + id, Timestamp: ts}
}

func TestAddFlushesAtBatchSize(t *testing.T) {
	s := New("", 3, time.Hour)

	if batch := s.Add(event("a", time.Now())); batch != nil {
		t.Fatalf("flushed early: %v", batch)
	}
	if batch := s.Add(event("b", time.Now())); batch != nil {
		t.Fatalf("flushed early: %v", batch)
	}

	batch := s.Add(event("c", time.Now()))
	if len(batch) != 3 {
		t.Fatalf("batch = %d events, want 3", len(batch))
	}
	if batch[0].ID != "a" || batch[2].ID != "c" {
		t.Errorf("batch order wrong: %v", batch)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d after flush", s.Len())
	}
}

func TestTakeAged(t *testing.T) {
	s := New("", 100, 10*time.Millisecond)

	s.Add(event("a", time.Now().Add(-time.Second)))
	s.Add(event("b", time.Now()))

	batch := s.TakeAged()
	if len(batch) != 2 {
		t.Fatalf("aged batch = %d, want 2 (oldest past limit)", len(batch))
	}

	s.Add(event("c", time.Now()))
	if batch := s.TakeAged(); batch != nil {
		t.Errorf("fresh event flushed: %v", batch)
	}
}

func TestDrain(t *testing.T) {
	s := New("", 100, time.Hour)
	if batch := s.Drain(); batch != nil {
		t.Errorf("drain of empty spool = %v", batch)
	}

	s.Add(event("a", time.Now()))
	if batch := s.Drain(); len(batch) != 1 {
		t.Errorf("drain = %d, want 1", len(batch))
	}
}

func TestPendingSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s := New(dir, 100, time.Hour)
	for i := 0; i < 4; i++ {
		s.Add(event(fmt.Sprintf("e%d", i), time.Now()))
	}

	reopened := New(dir, 100, time.Hour)
	if reopened.Len() != 4 {
		t.Fatalf("recovered %d events, want 4", reopened.Len())
	}

	batch := reopened.Drain()
	if len(batch) != 4 || batch[0].ID != "e0" {
		t.Errorf("recovered batch wrong: %v", batch)
	}

	// State file is gone once drained; a third open starts empty
	third := New(dir, 100, time.Hour)
	if third.Len() != 0 {
		t.Errorf("third open recovered %d events, want 0", third.Len())
	}
}
