package realtime_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/realtime"
)

// fakeConn captures everything sent to one session.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(message))
	copy(buf, message)
	c.sent = append(c.sent, buf)
}

func (c *fakeConn) Close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) envelopes(t *testing.T) []realtime.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Envelope, len(c.sent))
	for i, raw := range c.sent {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			t.Fatalf("sent frame %d is not an envelope: %v", i, err)
		}
	}
	return out
}

// countEvents tallies frames by event name.
func countEvents(t *testing.T, c *fakeConn, event string) int {
	t.Helper()
	n := 0
	for _, env := range c.envelopes(t) {
		if env.Event == event {
			n++
		}
	}
	return n
}

func newTestHub() *realtime.Hub {
	return realtime.NewHub(newTestLogger(), metrics.NewUnregistered())
}

func newSession(userID string) (*realtime.Session, *fakeConn) {
	conn := &fakeConn{}
	return &realtime.Session{
		ID:        uuid.New(),
		Conn:      conn,
		CreatedAt: time.Now(),
		UserID:    userID,
	}, conn
}

func TestHubJoinLeavesPriorRoom(t *testing.T) {
	h := newTestHub()
	sess, _ := newSession("u1")
	h.Register(sess)

	if prev, ok := h.Join(sess.ID, "mindmap:1", true); !ok || prev != "" {
		t.Fatalf("first join: prev=%q ok=%v", prev, ok)
	}
	if room, _ := h.RoomOf(sess.ID); room != "mindmap:1" {
		t.Fatalf("expected room mindmap:1, got %q", room)
	}

	// A join while joined must detach from the old room first.
	prev, ok := h.Join(sess.ID, "mindmap:2", false)
	if !ok || prev != "mindmap:1" {
		t.Fatalf("second join: prev=%q ok=%v", prev, ok)
	}
	if room, _ := h.RoomOf(sess.ID); room != "mindmap:2" {
		t.Errorf("expected room mindmap:2, got %q", room)
	}

	// Old room must no longer receive broadcasts for this session.
	other, _ := newSession("u2")
	h.Register(other)
	h.Join(other.ID, "mindmap:1", false)
	if n := h.Broadcast("mindmap:1", other.ID, []byte(`{"event":"x"}`)); n != 0 {
		t.Errorf("expected no remaining members in old room, reached %d", n)
	}
}

func TestHubRejoinSameRoomKeepsMembership(t *testing.T) {
	h := newTestHub()
	sess, _ := newSession("u1")
	h.Register(sess)

	h.Join(sess.ID, "mindmap:1", false)
	prev, ok := h.Join(sess.ID, "mindmap:1", true)
	if !ok || prev != "" {
		t.Fatalf("re-join of same room should not report a prior room, got %q", prev)
	}

	peer, _ := newSession("u2")
	h.Register(peer)
	h.Join(peer.ID, "mindmap:1", false)
	if n := h.Broadcast("mindmap:1", peer.ID, []byte(`{}`)); n != 1 {
		t.Errorf("expected 1 recipient, got %d", n)
	}
}

func TestHubJoinAfterUnregisterIsDiscarded(t *testing.T) {
	h := newTestHub()
	sess, _ := newSession("u1")
	h.Register(sess)
	h.Unregister(sess.ID)

	// Models an authorization lookup finishing after the disconnect.
	if _, ok := h.Join(sess.ID, "mindmap:1", true); ok {
		t.Error("join for an unregistered session must be discarded")
	}
	if n := h.Broadcast("mindmap:1", uuid.New(), []byte(`{}`)); n != 0 {
		t.Errorf("nothing should be joined, reached %d", n)
	}
}

func TestHubBroadcastExcludesOriginator(t *testing.T) {
	h := newTestHub()
	a, aConn := newSession("u1")
	b, bConn := newSession("u2")
	c, cConn := newSession("u3")
	for _, s := range []*realtime.Session{a, b, c} {
		h.Register(s)
		h.Join(s.ID, "mindmap:1", false)
	}

	n := h.Broadcast("mindmap:1", a.ID, []byte(`{"event":"t"}`))
	if n != 2 {
		t.Fatalf("expected 2 recipients, got %d", n)
	}
	if len(aConn.sent) != 0 {
		t.Error("originator must not receive its own broadcast")
	}
	if len(bConn.sent) != 1 || len(cConn.sent) != 1 {
		t.Errorf("peers should receive exactly one frame, got %d and %d", len(bConn.sent), len(cConn.sent))
	}
}

func TestHubUserSessionTracking(t *testing.T) {
	h := newTestHub()
	first, _ := newSession("u1")
	h.Register(first)
	second, _ := newSession("u1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	h.Register(second)
	anon, _ := newSession("")
	h.Register(anon)

	if n := h.UserSessionCount("u1"); n != 2 {
		t.Errorf("expected 2 sessions for u1, got %d", n)
	}
	if n := h.UserSessionCount(""); n != 0 {
		t.Errorf("anonymous sessions must not be counted, got %d", n)
	}

	oldest, found := h.OldestUserSession("u1")
	if !found || oldest.ID != first.ID {
		t.Error("expected the first session to be the oldest")
	}
}
