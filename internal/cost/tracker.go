// Package cost estimates and records LLM spend. Entries are buffered in
// memory and flushed to the store at most once per interval so bursts of
// calls coalesce into a single persistence write.
package cost

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// Ledger is the slice of the store the tracker writes to
type Ledger interface {
	SaveCostEntry(c *graph.CostEntry) error
}

// modelPrice is USD per million tokens
type modelPrice struct {
	input  float64
	output float64
}

// Static price table. Unknown models cost 0.
var prices = map[string]modelPrice{
	"gpt-4o":                   {input: 2.50, output: 10.00},
	"gpt-4o-mini":              {input: 0.15, output: 0.60},
	"gpt-4.1":                  {input: 2.00, output: 8.00},
	"gpt-4.1-mini":             {input: 0.40, output: 1.60},
	"claude-3-5-sonnet-latest": {input: 3.00, output: 15.00},
	"claude-3-5-haiku-latest":  {input: 0.80, output: 4.00},
	"gemini-1.5-flash":         {input: 0.075, output: 0.30},
	"gemini-1.5-pro":           {input: 1.25, output: 5.00},
}

// DefaultCharsPerToken is the shared chars-per-token estimate
const DefaultCharsPerToken = 4

// EstimateTokens approximates the token count of text
func EstimateTokens(text string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return int(math.Ceil(float64(len(text)) / float64(charsPerToken)))
}

// Price computes the USD cost of a call; zero for unknown models
func Price(model string, inputTokens, outputTokens int) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*p.input + float64(outputTokens)/1e6*p.output
}

// Tracker is a bounded write-behind buffer over the cost ledger
type Tracker struct {
	ledger        Ledger
	flushInterval time.Duration

	mu      sync.Mutex
	pending []*graph.CostEntry
	timer   *time.Timer
	closed  bool
}

// NewTracker creates a tracker flushing at most once per interval
// (default 1s when interval <= 0)
func NewTracker(ledger Ledger, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{ledger: ledger, flushInterval: interval}
}

// Track records one LLM call. The entry is buffered; a flush is armed if one
// is not already scheduled.
func (t *Tracker) Track(model, source string, inputTokens, outputTokens int) {
	entry := &graph.CostEntry{
		ID:           uuid.NewString(),
		Model:        model,
		Source:       source,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         Price(model, inputTokens, outputTokens),
		Timestamp:    time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		// Late arrival after Close: write through immediately
		if err := t.ledger.SaveCostEntry(entry); err != nil {
			logging.Warn("cost", "failed to save late cost entry: %v", err)
		}
		return
	}
	t.pending = append(t.pending, entry)
	if t.timer == nil {
		t.timer = time.AfterFunc(t.flushInterval, t.flushTimer)
	}
}

func (t *Tracker) flushTimer() {
	t.mu.Lock()
	t.timer = nil
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	t.write(batch)
}

// Flush synchronously writes all pending entries
func (t *Tracker) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	t.write(batch)
}

func (t *Tracker) write(batch []*graph.CostEntry) {
	for _, entry := range batch {
		if err := t.ledger.SaveCostEntry(entry); err != nil {
			logging.Warn("cost", "failed to save cost entry: %v", err)
		}
	}
	if len(batch) > 0 {
		logging.Debug("cost", "flushed %d cost entries", len(batch))
	}
}

// Pending returns the number of buffered entries
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close flushes synchronously and stops the tracker
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Flush()
}
