// Package spool accumulates incoming activity events so extraction runs on
// batches instead of single events. Pending events survive a restart through a
// JSON state file next to the database.
package spool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

const (
	// DefaultMaxEvents is the batch size that triggers a flush
	DefaultMaxEvents = 10
	// DefaultMaxAge is how long the oldest event may wait before a flush
	DefaultMaxAge = 30 * time.Second

	stateFile = "spool.json"
)

// Spool is a small accumulate-then-flush event buffer
type Spool struct {
	mu        sync.Mutex
	pending   []graph.Event
	path      string
	maxEvents int
	maxAge    time.Duration
}

// New creates a spool persisting under statePath. statePath may be empty for
// a memory-only spool (tests).
func New(statePath string, maxEvents int, maxAge time.Duration) *Spool {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &Spool{maxEvents: maxEvents, maxAge: maxAge}
	if statePath != "" {
		s.path = filepath.Join(statePath, stateFile)
		s.load()
	}
	return s
}

// Add buffers an event. When the buffer reaches the batch size the pending
// events are returned for processing and the buffer is cleared; otherwise nil.
func (s *Spool) Add(ev graph.Event) []graph.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, ev)
	if len(s.pending) >= s.maxEvents {
		return s.takeLocked()
	}
	s.save()
	return nil
}

// TakeAged returns the pending events if the oldest has waited past the age
// limit, otherwise nil. Meant to be polled from a timer.
func (s *Spool) TakeAged() []graph.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	if time.Since(s.pending[0].Timestamp) < s.maxAge {
		return nil
	}
	return s.takeLocked()
}

// Drain returns whatever is pending regardless of thresholds. Used at
// shutdown so buffered events are not lost.
func (s *Spool) Drain() []graph.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	return s.takeLocked()
}

// Len returns the number of buffered events
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Spool) takeLocked() []graph.Event {
	batch := s.pending
	s.pending = nil
	s.save()
	return batch
}

func (s *Spool) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var pending []graph.Event
	if err := json.Unmarshal(data, &pending); err != nil {
		logging.Warn("spool", "failed to parse %s: %v", s.path, err)
		return
	}
	s.pending = pending
	if len(pending) > 0 {
		logging.Info("spool", "recovered %d pending events", len(pending))
	}
}

func (s *Spool) save() {
	if s.path == "" {
		return
	}
	if len(s.pending) == 0 {
		os.Remove(s.path)
		return
	}
	data, err := json.Marshal(s.pending)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		logging.Warn("spool", "failed to persist pending events: %v", err)
	}
}
