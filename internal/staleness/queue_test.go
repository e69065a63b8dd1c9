package staleness

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/recallhq/recall/internal/graph"
)

func testStore(t *testing.T) *graph.SQLiteStore {
	t.Helper()
	store, err := graph.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedTree builds root -> domain -> topic and returns the store
func seedTree(t *testing.T, store *graph.SQLiteStore) {
	t.Helper()
	nodes := []*graph.Summary{
		{ID: "root", NodeType: graph.NodeRoot, NodeKey: "root", Label: "Everything"},
		{ID: "work", NodeType: graph.NodeDomain, NodeKey: "work", Label: "Work", ParentID: "root"},
		{ID: "atlas", NodeType: graph.NodeTopic, NodeKey: "atlas", Label: "Project Atlas", ParentID: "work"},
	}
	for _, n := range nodes {
		if err := store.SaveSummary(n); err != nil {
			t.Fatalf("seed %s: %v", n.ID, err)
		}
	}
}

func TestScore(t *testing.T) {
	store := testStore(t)
	q, err := New(store, nil, nil, Config{AgeFactor: 0.1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	tests := []struct {
		name string
		sum  graph.Summary
		want float64
	}{
		{
			name: "events and age combine",
			sum: graph.Summary{
				EventsSinceRefresh: 15,
				PriorityMultiplier: 1.5,
				LastRefreshedAt:    fixed.Add(-48 * time.Hour),
			},
			want: 15*1.5 + 2*0.1, // 22.7
		},
		{
			name: "zero multiplier defaults to 1",
			sum:  graph.Summary{EventsSinceRefresh: 10, LastRefreshedAt: fixed},
			want: 10,
		},
		{
			name: "never refreshed falls back to created_at",
			sum:  graph.Summary{CreatedAt: fixed.Add(-10 * 24 * time.Hour), PriorityMultiplier: 1.0},
			want: 1.0,
		},
		{
			name: "no anchor at all scores events only",
			sum:  graph.Summary{EventsSinceRefresh: 4, PriorityMultiplier: 2.0},
			want: 8.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.Score(&tt.sum)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotifyEventsPropagatesToAncestors(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	q, err := New(store, nil, nil, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if q.Len() != 3 {
		t.Fatalf("primed len = %d, want 3", q.Len())
	}

	q.NotifyEvents("atlas", 5)

	for _, id := range []string{"atlas", "work", "root"} {
		sum, err := store.GetSummary(id)
		if err != nil || sum == nil {
			t.Fatalf("GetSummary(%s): %v", id, err)
		}
		if sum.EventsSinceRefresh != 5 {
			t.Errorf("%s events = %d, want 5", id, sum.EventsSinceRefresh)
		}
		if sum.TotalEventCount != 5 {
			t.Errorf("%s total = %d, want 5", id, sum.TotalEventCount)
		}
		if sum.StalenessScore <= 0 {
			t.Errorf("%s score not persisted", id)
		}
	}

	// Root-only notification must not touch descendants
	q.NotifyEvents("root", 2)
	atlas, _ := store.GetSummary("atlas")
	if atlas.EventsSinceRefresh != 5 {
		t.Errorf("atlas events = %d after root notify, want 5", atlas.EventsSinceRefresh)
	}
	root, _ := store.GetSummary("root")
	if root.EventsSinceRefresh != 7 {
		t.Errorf("root events = %d, want 7", root.EventsSinceRefresh)
	}
}

func TestNotifyEventsIgnoresNonPositiveAndUnknown(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	q, err := New(store, nil, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}

	q.NotifyEvents("atlas", 0)
	q.NotifyEvents("atlas", -3)
	q.NotifyEvents("no-such-node", 5)

	atlas, _ := store.GetSummary("atlas")
	if atlas.EventsSinceRefresh != 0 {
		t.Errorf("events = %d, want 0", atlas.EventsSinceRefresh)
	}
}

func TestStaleThreshold(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	q, err := New(store, nil, nil, Config{StaleThreshold: 10})
	if err != nil {
		t.Fatal(err)
	}

	q.NotifyEvents("atlas", 4) // atlas, work, root all at 4: below threshold
	if stale := q.Stale(0); len(stale) != 0 {
		t.Fatalf("stale = %d nodes below threshold, want 0", len(stale))
	}

	q.NotifyEvents("atlas", 6) // now at 10
	stale := q.Stale(0)
	if len(stale) != 3 {
		t.Fatalf("stale = %d, want 3", len(stale))
	}

	if got := q.Stale(1); len(got) != 1 {
		t.Errorf("limited stale = %d, want 1", len(got))
	}
}

func TestRefreshStale(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	refreshed := make(map[string]int)
	refresh := func(s *graph.Summary) (string, error) {
		refreshed[s.ID]++
		if s.ID == "work" {
			return "", fmt.Errorf("model unavailable")
		}
		return "regenerated " + s.Label, nil
	}

	q, err := New(store, nil, refresh, Config{StaleThreshold: 10})
	if err != nil {
		t.Fatal(err)
	}
	q.NotifyEvents("atlas", 12)

	stats := q.RefreshStale(context.Background(), 0)
	if stats.Skipped {
		t.Fatal("pass unexpectedly skipped")
	}
	if stats.Refreshed != 2 {
		t.Errorf("refreshed = %d, want 2", stats.Refreshed)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1 (work fails)", stats.Errors)
	}
	if len(refreshed) != 3 {
		t.Errorf("refresh calls = %v, want all three stale nodes attempted", refreshed)
	}

	atlas, _ := store.GetSummary("atlas")
	if atlas.Content != "regenerated Project Atlas" {
		t.Errorf("content = %q", atlas.Content)
	}
	if atlas.EventsSinceRefresh != 0 || atlas.StalenessScore != 0 {
		t.Errorf("counters not reset: events=%d score=%v", atlas.EventsSinceRefresh, atlas.StalenessScore)
	}

	// The failed node keeps its unrefreshed events and stays stale
	work, _ := store.GetSummary("work")
	if work.EventsSinceRefresh != 12 {
		t.Errorf("work events = %d, want 12 after failed refresh", work.EventsSinceRefresh)
	}
	if stale := q.Stale(0); len(stale) != 1 || stale[0].ID != "work" {
		t.Errorf("stale after pass = %v", stale)
	}
}

func TestRefreshStaleNonReentrant(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	entered := make(chan struct{})
	release := make(chan struct{})
	refresh := func(s *graph.Summary) (string, error) {
		close(entered)
		<-release
		return "done", nil
	}

	q, err := New(store, nil, refresh, Config{StaleThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	q.NotifyEvents("atlas", 3)

	first := make(chan RefreshStats)
	go func() { first <- q.RefreshStale(context.Background(), 1) }()

	<-entered
	second := q.RefreshStale(context.Background(), 1)
	if !second.Skipped {
		t.Error("concurrent pass was not skipped")
	}

	close(release)
	stats := <-first
	if stats.Skipped || stats.Refreshed != 1 {
		t.Errorf("first pass stats = %+v", stats)
	}
}

func TestRefreshStaleContextCancel(t *testing.T) {
	store := testStore(t)
	seedTree(t, store)

	refresh := func(s *graph.Summary) (string, error) { return "x", nil }
	q, err := New(store, nil, refresh, Config{StaleThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	q.NotifyEvents("atlas", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := q.RefreshStale(ctx, 0)
	if stats.Refreshed != 0 {
		t.Errorf("refreshed = %d under cancelled context, want 0", stats.Refreshed)
	}
}
