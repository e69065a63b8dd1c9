package assemble

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall/internal/graph"
	"github.com/recallhq/recall/internal/logging"
)

// IdentityKey is the summary node key the identity section reads from
const IdentityKey = "user_preferences"

// RecentEvent is a caller-supplied activity line for the recent section
type RecentEvent struct {
	Timestamp   time.Time
	Description string
}

// Request parameterizes one assembly
type Request struct {
	Query  string            // entity selection query; empty selects by importance
	State  map[string]string // current application state key/values
	Recent []RecentEvent     // recent activity, any order
}

// SectionStats reports one section's token accounting
type SectionStats struct {
	Tokens    int
	Truncated bool
}

// Context is the assembled, budget-constrained output
type Context struct {
	Text        string
	Sections    map[string]SectionStats
	TotalTokens int
	Truncated   bool     // the global cap fired
	EntityIDs   []string // entities referenced, for access bookkeeping
}

// Assembler builds AI context blocks from the store
type Assembler struct {
	store  graph.Store
	budget Budget
	now    func() time.Time // test hook
}

// New creates an assembler over a store
func New(store graph.Store, budget Budget) *Assembler {
	return &Assembler{store: store, budget: budget, now: time.Now}
}

type section struct {
	name     string
	header   string
	build    func(*Context) string
	budget   int
	lineWise bool
}

// Assemble builds all six sections, truncates each to its own budget, then
// enforces the total cap over the concatenation. Entity and fact selection
// counts as use: access and retrieval counters are incremented for everything
// included.
func (a *Assembler) Assemble(req Request) (*Context, error) {
	out := &Context{Sections: make(map[string]SectionStats)}
	b := a.budget
	cpt := b.charsPerToken()

	sections := []section{
		{name: "identity", header: "## Identity", build: func(*Context) string { return a.buildIdentity() }, budget: b.Identity},
		{name: "state", header: "## Current State", build: func(*Context) string { return a.buildState(req.State) }, budget: b.State},
		{name: "knowledge", header: "## Knowledge", build: func(*Context) string { return a.buildKnowledge() }, budget: b.Knowledge},
		{name: "recent", header: "## Recent Activity", build: func(*Context) string { return a.buildRecent(req.Recent) }, budget: b.Recent, lineWise: true},
		{name: "entities", header: "## Relevant Entities", build: func(c *Context) string { return a.buildEntities(req.Query, c) }, budget: b.Entities},
		{name: "reflection", header: "## Reflections", build: func(*Context) string { return a.buildReflection() }, budget: b.Reflection, lineWise: true},
	}

	var parts []string
	for _, s := range sections {
		text := strings.TrimSpace(s.build(out))
		if text == "" {
			continue
		}

		var truncated bool
		if s.lineWise {
			text, truncated = truncateLines(text, s.budget, cpt)
		} else {
			text, truncated = truncateProse(text, s.budget, cpt)
		}

		out.Sections[s.name] = SectionStats{Tokens: b.Tokens(text), Truncated: truncated}
		parts = append(parts, s.header+"\n"+text)
	}

	text := strings.Join(parts, "\n\n")

	// Section caps were respected individually, but headers and joins can
	// still push the naive sum past the hard cap.
	if b.Tokens(text) > b.TotalCap {
		text, _ = truncateProse(text, b.TotalCap, cpt)
		out.Truncated = true
		logging.Debug("assemble", "total cap fired (%d tokens cap)", b.TotalCap)
	}

	out.Text = text
	out.TotalTokens = b.Tokens(text)
	return out, nil
}

// buildIdentity prefers the cached user-preferences summary, falling back to
// top preference facts
func (a *Assembler) buildIdentity() string {
	if sum, err := a.store.GetSummaryByKey(IdentityKey); err == nil && sum != nil && sum.Content != "" {
		return sum.Content
	}

	facts, err := a.store.FindFacts(graph.FactQuery{FactType: "preference", Limit: 5})
	if err != nil || len(facts) == 0 {
		return ""
	}
	var lines []string
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- %s %s %s", f.Subject, f.Predicate, f.Object))
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) buildState(state map[string]string) string {
	var lines []string
	lines = append(lines, "time: "+a.now().Format("Mon Jan 2 15:04"))

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+state[k])
	}
	return strings.Join(lines, "\n")
}

// buildKnowledge uses the root summary when the tree has one, otherwise a
// ranked list of the most important entities
func (a *Assembler) buildKnowledge() string {
	if root, err := a.store.GetRootSummary(); err == nil && root != nil && root.Content != "" {
		return root.Content
	}

	entities, err := a.store.FindEntities(graph.EntityQuery{MinImportance: 0.3, Limit: 10})
	if err != nil || len(entities) == 0 {
		return ""
	}
	var lines []string
	for _, e := range entities {
		line := fmt.Sprintf("- %s (%s)", e.Name, e.EntityType)
		if e.Description != "" {
			line += ": " + e.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) buildRecent(events []RecentEvent) string {
	if len(events) == 0 {
		return ""
	}
	sorted := make([]RecentEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	max := a.budget.MaxRecentEvents
	if max <= 0 {
		max = 15
	}
	if len(sorted) > max {
		sorted = sorted[:max]
	}

	var lines []string
	for _, ev := range sorted {
		lines = append(lines, ev.Timestamp.Format("15:04")+" "+ev.Description)
	}
	return strings.Join(lines, "\n")
}

// buildEntities selects entities by query match or importance and lists each
// with a per-entity fact sub-budget. Selection alone constitutes use: access
// and retrieval counters are bumped for everything listed.
func (a *Assembler) buildEntities(query string, out *Context) string {
	var entities []*graph.Entity
	var err error
	if query != "" {
		entities, err = a.store.SearchEntities(query, 5)
	}
	if err == nil && len(entities) == 0 {
		entities, err = a.store.FindEntities(graph.EntityQuery{MinImportance: 0.5, Limit: 5})
	}
	if err != nil || len(entities) == 0 {
		return ""
	}

	factsPer := a.budget.FactsPerEntity
	if factsPer <= 0 {
		factsPer = 3
	}

	var lines []string
	for _, e := range entities {
		line := fmt.Sprintf("- %s (%s)", e.Name, e.EntityType)
		if e.Description != "" {
			line += ": " + e.Description
		}
		lines = append(lines, line)

		out.EntityIDs = append(out.EntityIDs, e.ID)
		if err := a.store.IncrementEntityAccess(e.ID); err != nil {
			logging.Debug("assemble", "access bump failed for %s: %v", e.ID, err)
		}

		facts, err := a.store.GetFactsForSubject(e.Name)
		if err != nil {
			continue
		}
		if len(facts) > factsPer {
			facts = facts[:factsPer]
		}
		for _, f := range facts {
			lines = append(lines, fmt.Sprintf("  - %s %s", f.Predicate, f.Object))
			if err := a.store.IncrementFactRetrieval(f.ID); err != nil {
				logging.Debug("assemble", "retrieval bump failed for %s: %v", f.ID, err)
			}
		}
	}
	return strings.Join(lines, "\n")
}

var sentimentGlyphs = map[string]string{
	"positive": "✓",
	"negative": "✗",
	"neutral":  "•",
}

func (a *Assembler) buildReflection() string {
	records, err := a.store.GetLearningRecords(graph.LearningQuery{Limit: 5})
	if err != nil || len(records) == 0 {
		return ""
	}
	var lines []string
	for _, r := range records {
		glyph, ok := sentimentGlyphs[r.Sentiment]
		if !ok {
			glyph = "•"
		}
		lines = append(lines, glyph+" "+r.Content)
	}
	return strings.Join(lines, "\n")
}
