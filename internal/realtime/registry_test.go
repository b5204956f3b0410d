package realtime_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/realtime"
)

func newTestLogger() *slog.Logger {
	// Discard log output during tests by setting a high level.
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestAnnounceUpsertsWithoutDuplicates(t *testing.T) {
	g := realtime.NewRegistry(newTestLogger())
	room := "mindmap:1"

	g.Announce(room, realtime.Participant{ClientID: "c1", Name: "Ada", Color: "#f00"})
	g.Announce(room, realtime.Participant{ClientID: "c1", Name: "Ada Lovelace", Color: "#f00"})

	snap := g.Snapshot(room, "")
	if len(snap) != 1 {
		t.Fatalf("expected 1 participant after re-announce, got %d", len(snap))
	}
	if snap[0].Name != "Ada Lovelace" {
		t.Errorf("expected re-announce to update name, got %q", snap[0].Name)
	}
}

func TestAnnouncePreservesCursorAndActive(t *testing.T) {
	g := realtime.NewRegistry(newTestLogger())
	room := "mindmap:1"

	g.Announce(room, realtime.Participant{ClientID: "c1", Name: "Ada"})
	if !g.SetCursor(room, "c1", json.RawMessage(`{"x":5,"y":9}`)) {
		t.Fatal("SetCursor should succeed after announce")
	}
	if !g.SetActive(room, "c1", json.RawMessage(`{"nodeId":"n3"}`)) {
		t.Fatal("SetActive should succeed after announce")
	}

	stored := g.Announce(room, realtime.Participant{ClientID: "c1", Name: "Ada", Color: "#0f0"})
	if string(stored.Cursor) != `{"x":5,"y":9}` {
		t.Errorf("cursor lost on re-announce: %s", stored.Cursor)
	}
	if string(stored.Active) != `{"nodeId":"n3"}` {
		t.Errorf("active state lost on re-announce: %s", stored.Active)
	}

	if !g.ClearActive(room, "c1") {
		t.Fatal("ClearActive should succeed for existing entry")
	}
	snap := g.Snapshot(room, "")
	if snap[0].Active != nil {
		t.Errorf("expected active cleared, got %s", snap[0].Active)
	}
}

func TestUpdatesBeforeAnnounceAreNoops(t *testing.T) {
	g := realtime.NewRegistry(newTestLogger())
	room := "mindmap:1"

	if g.SetCursor(room, "ghost", json.RawMessage(`{}`)) {
		t.Error("SetCursor before announce should be a no-op")
	}
	if g.SetActive(room, "ghost", json.RawMessage(`{}`)) {
		t.Error("SetActive before announce should be a no-op")
	}
	if g.ClearActive(room, "ghost") {
		t.Error("ClearActive before announce should be a no-op")
	}
	if len(g.Snapshot(room, "")) != 0 {
		t.Error("no entry should exist before announce")
	}
}

func TestSnapshotExcludesRequesterAndIsOrdered(t *testing.T) {
	g := realtime.NewRegistry(newTestLogger())
	room := "mindmap:1"

	g.Announce(room, realtime.Participant{ClientID: "c2", Name: "Grace"})
	g.Announce(room, realtime.Participant{ClientID: "c1", Name: "Ada"})
	g.Announce(room, realtime.Participant{ClientID: "c3", Name: "Edsger"})

	got := g.Snapshot(room, "c2")
	want := []realtime.Participant{
		{ClientID: "c1", Name: "Ada"},
		{ClientID: "c3", Name: "Edsger"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	g := realtime.NewRegistry(newTestLogger())
	room := "mindmap:1"

	g.Announce(room, realtime.Participant{ClientID: "c1"})
	if !g.Remove(room, "c1") {
		t.Fatal("first Remove should report an entry existed")
	}
	if g.Remove(room, "c1") {
		t.Error("second Remove should be a no-op")
	}
	if g.Remove("mindmap:none", "c1") {
		t.Error("Remove on unknown room should be a no-op")
	}
	if len(g.Snapshot(room, "")) != 0 {
		t.Error("room should be empty after Remove")
	}
}
