package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
)

// Conn is the transport surface the hub needs from a connection.
type Conn interface {
	Send(message []byte)
	Close(err error)
}

// Session is one live connection's realtime state. Room and permission
// fields are owned by the Hub and mutated only under its lock.
type Session struct {
	ID        uuid.UUID
	Conn      Conn
	CreatedAt time.Time

	// Verified identity; empty for anonymous connections.
	UserID string
	// Raw handshake credential, forwarded to the document service on join.
	Bearer string

	room    string
	canEdit bool
}

// ClientID is the wire identifier peers see for this session.
func (s *Session) ClientID() string {
	return s.ID.String()
}

// Hub tracks live sessions and their room groups, and performs room fan-out.
// A session belongs to at most one room at a time; the hub enforces that a
// join while joined leaves the prior room first.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	rooms    map[string]map[uuid.UUID]*Session

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		rooms:    make(map[string]map[uuid.UUID]*Session),
		metrics:  m,
		logger:   logger.With(slog.String("component", "hub")),
	}
}

// Register adds a freshly accepted session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
	h.metrics.LiveSessions.Set(float64(len(h.sessions)))
	h.logger.Debug("Session registered", slog.String("connID", s.ID.String()), slog.String("userID", s.UserID))
}

// Unregister removes a session and detaches it from its room group, if any.
// It returns the session and the room it occupied so the caller can purge
// presence and announce the departure. Safe to call for unknown ids.
func (h *Hub) Unregister(id uuid.UUID) (*Session, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		return nil, ""
	}
	delete(h.sessions, id)
	room := s.room
	h.detachLocked(s)
	h.metrics.LiveSessions.Set(float64(len(h.sessions)))
	h.logger.Debug("Session unregistered", slog.String("connID", id.String()), slog.String("room", room))
	return s, room
}

// Session looks up a live session by connection id.
func (h *Hub) Session(id uuid.UUID) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Join attaches the session to room, leaving its previous room first. The
// returned prevRoom is non-empty when the session was joined elsewhere.
// ok is false when the session is no longer registered (the connection
// dropped while its authorization lookup was in flight); the caller must
// discard the join.
func (h *Hub) Join(id uuid.UUID, room string, canEdit bool) (prevRoom string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, found := h.sessions[id]
	if !found {
		return "", false
	}

	prevRoom = s.room
	if prevRoom == room {
		// Re-join of the same room only refreshes the permission.
		prevRoom = ""
	} else {
		h.detachLocked(s)
	}

	members, exists := h.rooms[room]
	if !exists {
		members = make(map[uuid.UUID]*Session)
		h.rooms[room] = members
	}
	members[id] = s
	s.room = room
	s.canEdit = canEdit
	h.metrics.LiveRooms.Set(float64(len(h.rooms)))
	h.logger.Debug("Session joined room", slog.String("connID", id.String()), slog.String("room", room), slog.Bool("canEdit", canEdit))
	return prevRoom, true
}

// RoomOf reports the session's current room, if any.
func (h *Hub) RoomOf(id uuid.UUID) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok || s.room == "" {
		return "", false
	}
	return s.room, true
}

// Broadcast sends msg to every session in room except the originator,
// returning the number of recipients.
func (h *Hub) Broadcast(room string, except uuid.UUID, msg []byte) int {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[room]))
	for id, s := range h.rooms[room] {
		if id == except {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Conn.Send(msg)
	}
	return len(targets)
}

// UserSessionCount counts live sessions for a user id.
func (h *Hub) UserSessionCount(userID string) int {
	if userID == "" {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// OldestUserSession finds the user's longest-lived session, for connection
// cycling.
func (h *Hub) OldestUserSession(userID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var oldest *Session
	for _, s := range h.sessions {
		if s.UserID != userID {
			continue
		}
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	return oldest, oldest != nil
}

// All returns every live session, for shutdown.
func (h *Hub) All() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	return all
}

// detachLocked removes the session from its room group and purges the room
// when it empties. Caller holds h.mu.
func (h *Hub) detachLocked(s *Session) {
	if s.room == "" {
		return
	}
	members := h.rooms[s.room]
	delete(members, s.ID)
	if len(members) == 0 {
		delete(h.rooms, s.room)
	}
	s.room = ""
	s.canEdit = false
	h.metrics.LiveRooms.Set(float64(len(h.rooms)))
}
