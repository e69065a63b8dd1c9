package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/recallhq/recall/internal/graph"
)

func makeEvent(id, typ, content string) graph.Event {
	return graph.Event{ID: id, Type: typ, Content: content, Timestamp: time.Now()}
}

func TestTriageShortAndNoise(t *testing.T) {
	tr := NewTriage(TriageConfig{})

	tests := []struct {
		name     string
		event    graph.Event
		wantPass bool
	}{
		{"normal", makeEvent("1", "note", "Met with Sarah about the launch plan"), true},
		{"too short", makeEvent("2", "note", "hi there"), false},
		{"whitespace only", makeEvent("3", "note", "          \n\t   "), false},
		{"heartbeat", makeEvent("4", "heartbeat", "system heartbeat ping number 42"), false},
		{"mouse move", makeEvent("5", "mouse_move", "cursor moved to 100,200 region"), false},
		{"exactly at minimum", makeEvent("6", "note", "0123456789"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			passed, skipped := tr.Filter([]graph.Event{tc.event})
			if tc.wantPass && len(passed) != 1 {
				t.Errorf("expected pass, got skipped=%d", len(skipped))
			}
			if !tc.wantPass && len(skipped) != 1 {
				t.Errorf("expected skip, got passed=%d", len(passed))
			}
		})
	}
}

func TestTriageDedupIdempotence(t *testing.T) {
	tr := NewTriage(TriageConfig{})

	first := makeEvent("1", "note", "Alice deployed the staging environment")
	second := makeEvent("2", "note", "Alice deployed the staging environment")

	passed, _ := tr.Filter([]graph.Event{first})
	if len(passed) != 1 {
		t.Fatalf("first occurrence should pass, got %d", len(passed))
	}

	passed, skipped := tr.Filter([]graph.Event{second})
	if len(passed) != 0 || len(skipped) != 1 {
		t.Errorf("duplicate content should be skipped, got passed=%d skipped=%d",
			len(passed), len(skipped))
	}
}

func TestTriageDedupWindowEviction(t *testing.T) {
	tr := NewTriage(TriageConfig{DedupWindow: 3})

	var events []graph.Event
	for i := 0; i < 4; i++ {
		events = append(events, makeEvent(fmt.Sprintf("%d", i), "note",
			fmt.Sprintf("unique event content number %d", i)))
	}
	tr.Filter(events)

	// The first hash was evicted by the fourth insert, so it passes again
	passed, _ := tr.Filter([]graph.Event{makeEvent("again", "note", "unique event content number 0")})
	if len(passed) != 1 {
		t.Errorf("evicted hash should pass again, got %d", len(passed))
	}

	// The most recent hash is still in the window
	_, skipped := tr.Filter([]graph.Event{makeEvent("dup", "note", "unique event content number 3")})
	if len(skipped) != 1 {
		t.Errorf("recent hash should still be deduped, got %d skips", len(skipped))
	}
}

func TestTriageExampleScenario(t *testing.T) {
	// 12 events: 5 too short, 2 exact duplicates of already-seen content
	tr := NewTriage(TriageConfig{})

	var events []graph.Event
	for i := 0; i < 5; i++ {
		events = append(events, makeEvent(fmt.Sprintf("long-%d", i), "note",
			fmt.Sprintf("meaningful activity event number %d", i)))
	}
	for i := 0; i < 5; i++ {
		events = append(events, makeEvent(fmt.Sprintf("short-%d", i), "note", "short"))
	}
	events = append(events,
		makeEvent("dup-1", "note", "meaningful activity event number 0"),
		makeEvent("dup-2", "note", "meaningful activity event number 1"),
	)

	passed, skipped := tr.Filter(events)
	if len(passed) != 5 {
		t.Errorf("passed = %d, want 5", len(passed))
	}
	if len(skipped) != 7 {
		t.Errorf("skipped = %d, want 7", len(skipped))
	}
}
