package history

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", FileName), log.New(io.Discard))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "notes.md"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Record(ctx, "notes.md", 3, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, "notes.md", 7, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entry, err := store.Get(ctx, "notes.md")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Position != 7 || entry.Total != 10 {
		t.Errorf("Expected position 7 of 10, got %d of %d", entry.Position, entry.Total)
	}
	if entry.UpdatedAt.IsZero() {
		t.Error("Expected an update time")
	}
}

func TestRecordEmptySource(t *testing.T) {
	if err := openTestStore(t).Record(context.Background(), "", 1, 2); err == nil {
		t.Error("Expected an error for an empty source")
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, source := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := store.Record(ctx, source, 1, 5); err != nil {
			t.Fatal(err)
		}
	}
	// Touching a.txt makes it the most recent.
	if err := store.Record(ctx, "a.txt", 2, 5); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Source != "a.txt" || entries[1].Source != "c.txt" {
		t.Errorf("Expected [a.txt c.txt], got [%s %s]", entries[0].Source, entries[1].Source)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 entries with the default limit, got %d", len(all))
	}
}

func TestForget(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "page", 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := store.Forget(ctx, "page"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if _, err := store.Get(ctx, "page"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Forget, got %v", err)
	}
	if err := store.Forget(ctx, "page"); err != nil {
		t.Errorf("Forgetting twice should not fail: %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	ctx := context.Background()

	store, err := Open(ctx, path, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, "book.pdf", 40, 90); err != nil {
		t.Fatal(err)
	}
	store.Close() //nolint:errcheck

	store, err = Open(ctx, path, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close() //nolint:errcheck

	entry, err := store.Get(ctx, "book.pdf")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if entry.Position != 40 {
		t.Errorf("Expected position 40, got %d", entry.Position)
	}
}

func TestResumeIndex(t *testing.T) {
	tests := []struct {
		name     string
		entry    Entry
		expected int
	}{
		{"midway", Entry{Position: 4, Total: 10}, 4},
		{"finished", Entry{Position: 10, Total: 10}, 0},
		{"negative", Entry{Position: -1, Total: 10}, 0},
		{"empty", Entry{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.ResumeIndex(); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestTrack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	msgs := make(chan tea.Msg, 8)
	msgs <- tts.StateChangedMsg{State: tts.StatePlaying, Index: 0, Total: 4}
	msgs <- tts.StateChangedMsg{State: tts.StatePlaying, Index: 2, Total: 4}
	msgs <- tts.ErrorMsg{Index: 2, Reason: "speech synthesis failed"}
	msgs <- tts.StateChangedMsg{State: tts.StateStopped, Index: 0, Total: 0}
	close(msgs)

	store.Track(ctx, "story.txt", msgs)

	entry, err := store.Get(ctx, "story.txt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Position != 2 || entry.Total != 4 {
		t.Errorf("Expected position 2 of 4, got %d of %d", entry.Position, entry.Total)
	}

	finished := make(chan tea.Msg, 1)
	finished <- tts.FinishedMsg{Total: 4}
	close(finished)
	store.Track(ctx, "story.txt", finished)

	entry, _ = store.Get(ctx, "story.txt")
	if !entry.Finished() || entry.ResumeIndex() != 0 {
		t.Errorf("Expected a finished entry, got %+v", entry)
	}
}

func TestTrackStopsOnContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		store.Track(ctx, "x", make(chan tea.Msg))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track did not return after cancellation")
	}
}
