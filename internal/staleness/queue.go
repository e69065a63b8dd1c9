package staleness

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recallhq/recall/internal/cost"
	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// RefreshFunc regenerates a summary node's content
type RefreshFunc func(s *graph.Summary) (string, error)

// Config tunes the staleness queue
type Config struct {
	AgeFactor       float64       // weight of node age in days (default 0.1)
	StaleThreshold  int           // min events_since_refresh to count as stale (default 10)
	RefreshInterval time.Duration // timer period; 0 disables the timer
	Model           string        // model name for refresh cost entries
	MaxCPUPercent   float64       // skip timed passes above this host load; 0 disables the gate
}

// RefreshStats reports one RefreshStale pass
type RefreshStats struct {
	Refreshed int
	Errors    int
	Skipped   bool // another pass was already in flight
}

// Queue is the staleness-driven refresh scheduler. The heap and its index
// are owned exclusively by the queue; callers interact through NotifyEvents,
// Stale, and RefreshStale.
type Queue struct {
	store   graph.Store
	costs   *cost.Tracker
	refresh RefreshFunc
	cfg     Config

	mu   sync.Mutex
	heap *pqueue[*graph.Summary]

	refreshing atomic.Bool
	stopOnce   sync.Once
	stop       chan struct{}
	gate       *loadGate

	now func() time.Time // test hook
}

// New creates a queue and primes the heap from the store
func New(store graph.Store, costs *cost.Tracker, refresh RefreshFunc, cfg Config) (*Queue, error) {
	if cfg.AgeFactor <= 0 {
		cfg.AgeFactor = 0.1
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10
	}

	q := &Queue{
		store:   store,
		costs:   costs,
		refresh: refresh,
		cfg:     cfg,
		heap:    newPQueue[*graph.Summary](),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	if cfg.MaxCPUPercent > 0 {
		q.gate = newLoadGate(cfg.MaxCPUPercent)
	}

	summaries, err := store.GetStalestSummaries(10_000)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		q.heap.push(s.ID, q.Score(s), s)
	}
	logging.Info("staleness", "queue primed with %d summary nodes", len(summaries))
	return q, nil
}

// Score computes a node's staleness priority:
// eventsSinceRefresh × priorityMultiplier + ageDays × ageFactor
func (q *Queue) Score(s *graph.Summary) float64 {
	multiplier := s.PriorityMultiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	anchor := s.LastRefreshedAt
	if anchor.IsZero() {
		anchor = s.CreatedAt
	}
	ageDays := 0.0
	if !anchor.IsZero() {
		ageDays = q.now().Sub(anchor).Hours() / 24
	}
	return float64(s.EventsSinceRefresh)*multiplier + ageDays*q.cfg.AgeFactor
}

// Track adds a summary node to the heap, or refreshes the queue's copy of a
// node the host has re-saved.
func (q *Queue) Track(s *graph.Summary) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap.push(s.ID, q.Score(s), s)
}

// NotifyEvents adds count unrefreshed events to a node and every ancestor up
// to the root. Each touched node is re-scored and re-heapified locally;
// staleness is contagious upward.
func (q *Queue) NotifyEvents(nodeID string, count int) {
	if count <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	for id := nodeID; id != "" && !seen[id]; {
		seen[id] = true
		node, ok := q.heap.get(id)
		if !ok {
			loaded, err := q.store.GetSummary(id)
			if err != nil || loaded == nil {
				logging.Debug("staleness", "notify for unknown node %s", id)
				return
			}
			node = loaded
			q.heap.push(node.ID, q.Score(node), node)
		}

		node.EventsSinceRefresh += count
		node.TotalEventCount += count
		node.StalenessScore = q.Score(node)
		q.heap.update(node.ID, node.StalenessScore)

		if err := q.store.IncrementSummaryEvents(node.ID, count); err != nil {
			logging.Warn("staleness", "failed to persist event count for %s: %v", node.ID, err)
		}
		if err := q.store.UpdateSummaryStaleness(node.ID, node.StalenessScore); err != nil {
			logging.Warn("staleness", "failed to persist score for %s: %v", node.ID, err)
		}

		id = node.ParentID
	}
}

// Stale returns nodes at or above the stale threshold, highest score first.
// limit <= 0 returns all of them.
func (q *Queue) Stale(limit int) []*graph.Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.staleLocked(limit)
}

func (q *Queue) staleLocked(limit int) []*graph.Summary {
	var out []*graph.Summary
	for _, s := range q.heap.all() {
		if s.EventsSinceRefresh >= q.cfg.StaleThreshold {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return q.Score(out[i]) > q.Score(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RefreshStale regenerates the most stale nodes via the injected refresh
// function. Non-reentrant: a call while another pass is in flight returns
// immediately with Skipped set. Per-node failures are logged and counted;
// the pass continues. The heap is rebuilt from scratch afterwards.
func (q *Queue) RefreshStale(ctx context.Context, limit int) RefreshStats {
	if !q.refreshing.CompareAndSwap(false, true) {
		return RefreshStats{Skipped: true}
	}
	defer q.refreshing.Store(false)

	q.mu.Lock()
	batch := q.staleLocked(limit)
	q.mu.Unlock()

	var stats RefreshStats
	for _, node := range batch {
		if ctx.Err() != nil {
			break
		}
		oldContent := node.Content
		newContent, err := q.refresh(node)
		if err != nil {
			logging.Warn("staleness", "refresh failed for %s (%s): %v", node.NodeKey, node.ID, err)
			stats.Errors++
			continue
		}

		if err := q.store.UpdateSummaryContent(node.ID, newContent, nil); err != nil {
			logging.Warn("staleness", "failed to persist refresh for %s: %v", node.ID, err)
			stats.Errors++
			continue
		}

		q.mu.Lock()
		node.Content = newContent
		node.EventsSinceRefresh = 0
		node.LastRefreshedAt = q.now()
		node.StalenessScore = q.Score(node)
		q.mu.Unlock()

		if q.costs != nil {
			q.costs.Track(q.cfg.Model, "refresh",
				cost.EstimateTokens(oldContent, 0),
				cost.EstimateTokens(newContent, 0))
		}
		stats.Refreshed++
	}

	// Full Floyd rebuild guarantees heap consistency after the pass
	q.mu.Lock()
	q.heap.rebuild(q.Score)
	q.mu.Unlock()

	if stats.Refreshed > 0 || stats.Errors > 0 {
		logging.Info("staleness", "refresh pass: %d refreshed, %d errors", stats.Refreshed, stats.Errors)
	}
	return stats
}

// Start runs timed refresh passes until Stop. Errors never kill the timer;
// passes are skipped while the host CPU is above the configured ceiling.
func (q *Queue) Start(ctx context.Context, limit int) {
	if q.cfg.RefreshInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(q.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if q.gate != nil && q.gate.busy() {
					logging.Debug("staleness", "host busy, skipping timed refresh")
					continue
				}
				q.RefreshStale(ctx, limit)
			}
		}
	}()
}

// Stop halts the refresh timer
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// Len returns the number of tracked nodes
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.len()
}

// Top returns the most stale node without removing it
func (q *Queue) Top() (*graph.Summary, float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.peek()
}
