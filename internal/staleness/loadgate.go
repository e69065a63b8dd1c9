package staleness

import (
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/recallhq/recall/internal/logging"
)

// loadGate defers background refresh work while the host is busy, so summary
// regeneration never competes with the user's foreground activity.
type loadGate struct {
	maxPercent float64
	sampled    bool
}

func newLoadGate(maxPercent float64) *loadGate {
	return &loadGate{maxPercent: maxPercent}
}

// busy reports whether host CPU usage exceeds the ceiling. Sampling is
// non-blocking: usage is measured since the previous call, so the very first
// reading is treated as idle.
func (g *loadGate) busy() bool {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		logging.Debug("staleness", "cpu sample failed: %v", err)
		return false
	}
	if !g.sampled {
		g.sampled = true
		return false
	}
	if len(percents) == 0 {
		return false
	}
	return percents[0] > g.maxPercent
}
