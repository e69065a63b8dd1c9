// Package extract turns raw activity events into knowledge graph entities,
// relations, and facts. Triage filters noise first; a heuristic pass always
// runs; an LLM pass runs in batches when a generator is configured; results
// from both passes are merged before persistence.
package extract

import (
	"strings"

	"github.com/zeebo/blake3"

	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// DefaultNoiseTypes are event types carrying no extractable knowledge
var DefaultNoiseTypes = []string{
	"heartbeat",
	"status_update",
	"mouse_move",
	"scroll",
	"window_resize",
	"focus_change",
}

// TriageConfig tunes the pre-extraction filter
type TriageConfig struct {
	MinContentLen int      // events with shorter trimmed content are skipped (default 10)
	NoiseTypes    []string // event types skipped outright
	DedupWindow   int      // how many recent content hashes to remember (default 500)
}

// Triage drops near-empty, noise-typed, and recently-seen-duplicate events.
// The duplicate window is a bounded FIFO of content hashes, not semantic dedup.
type Triage struct {
	minLen int
	noise  map[string]bool

	window int
	seen   map[[32]byte]bool
	order  [][32]byte // FIFO eviction order
}

// NewTriage creates a triage filter with defaults applied
func NewTriage(cfg TriageConfig) *Triage {
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = 10
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 500
	}
	types := cfg.NoiseTypes
	if types == nil {
		types = DefaultNoiseTypes
	}
	noise := make(map[string]bool, len(types))
	for _, t := range types {
		noise[t] = true
	}
	return &Triage{
		minLen: cfg.MinContentLen,
		noise:  noise,
		window: cfg.DedupWindow,
		seen:   make(map[[32]byte]bool),
	}
}

// Filter partitions events into passed and skipped. Skips are an
// observability signal, never an error.
func (t *Triage) Filter(events []graph.Event) (passed, skipped []graph.Event) {
	for _, ev := range events {
		content := strings.TrimSpace(ev.Content)
		if len(content) < t.minLen {
			skipped = append(skipped, ev)
			continue
		}
		if t.noise[ev.Type] {
			skipped = append(skipped, ev)
			continue
		}
		hash := blake3.Sum256([]byte(content))
		if t.seen[hash] {
			skipped = append(skipped, ev)
			continue
		}
		t.remember(hash)
		passed = append(passed, ev)
	}
	if len(skipped) > 0 {
		logging.Debug("triage", "skipped %d of %d events", len(skipped), len(events))
	}
	return passed, skipped
}

func (t *Triage) remember(hash [32]byte) {
	t.seen[hash] = true
	t.order = append(t.order, hash)
	for len(t.order) > t.window {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}
}
