package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
)

// Handler dispatches decoded envelopes to the join, presence and relay
// logic. One Handler serves every connection; per-connection state lives in
// the hub's sessions.
type Handler struct {
	hub      *Hub
	registry *Registry
	resolver *Resolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewHandler(logger *slog.Logger, hub *Hub, registry *Registry, resolver *Resolver, m *metrics.Metrics) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		resolver: resolver,
		metrics:  m,
		logger:   logger.With(slog.String("component", "realtime_handler")),
	}
}

// HandleMessage is the transport's message callback. Malformed frames and
// unknown events are logged and dropped; nothing is fatal to the server.
func (h *Handler) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	sess, ok := h.hub.Session(connID)
	if !ok {
		return
	}

	switch env.Event {
	case EvtJoin:
		h.handleJoin(ctx, sess, env.Payload)
	case EvtNodesChange, EvtEdgesChange, EvtConnect, EvtViewport:
		h.relay(sess, env)
	case EvtCursorMove:
		h.handleCursor(sess, env)
	case EvtPresenceAnnounce:
		h.handleAnnounce(sess, env)
	case EvtPresenceActive:
		h.handleActive(sess, env)
	case EvtPresenceClear:
		h.handleClear(sess, env)
	default:
		h.logger.Warn("Received unknown event", slog.String("event", env.Event), slog.String("connID", connID.String()))
	}
}

// HandleDisconnect is the transport's close callback: purge the session's
// membership and presence, and tell the room it left. Idempotent.
func (h *Handler) HandleDisconnect(connID uuid.UUID) {
	sess, room := h.hub.Unregister(connID)
	if sess == nil || room == "" {
		return
	}
	h.announceLeft(room, sess)
}

// handleJoin authorizes and performs a room join. Every failure arm is
// silent on the wire: no room, no ack.
func (h *Handler) handleJoin(ctx context.Context, sess *Session, payload json.RawMessage) {
	req := JoinRequest{
		MindmapID:  gjson.GetBytes(payload, "mindmapId").String(),
		ShareToken: gjson.GetBytes(payload, "shareToken").String(),
		Bearer:     sess.Bearer,
		UserID:     sess.UserID,
	}
	if req.MindmapID == "" && req.ShareToken == "" {
		return
	}

	// The lookup is the only suspension point in a connection's event
	// stream; it is bounded by the resolver's client timeout.
	outcome := h.resolver.Resolve(ctx, req)
	if !outcome.Joined {
		h.logger.Debug("Join unresolved", slog.String("connID", sess.ID.String()))
		return
	}

	prevRoom, ok := h.hub.Join(sess.ID, outcome.Room, outcome.CanEdit)
	if !ok {
		// The connection dropped while the lookup was in flight.
		h.logger.Debug("Discarding join for departed connection", slog.String("connID", sess.ID.String()))
		return
	}
	if prevRoom != "" {
		h.announceLeft(prevRoom, sess)
	}

	if msg, err := encodeEvent(EvtJoined, outcome.Room, joinedPayload{Room: outcome.Room, CanEdit: outcome.CanEdit}); err == nil {
		sess.Conn.Send(msg)
	}
	// Late joiners get the current presence set before anyone announces to
	// them, so existing cursors render immediately.
	snapshot := h.registry.Snapshot(outcome.Room, sess.ClientID())
	if msg, err := encodeEvent(EvtPresenceState, outcome.Room, snapshot); err == nil {
		sess.Conn.Send(msg)
	}
}

// relay rebroadcasts a document-mutation payload, untouched, to the rest of
// the room. No ack, no inspection; document state is the clients' problem.
func (h *Handler) relay(sess *Session, env Envelope) {
	if env.Room == "" {
		return
	}
	msg, err := encodeRaw(env.Event, env.Room, env.Payload)
	if err != nil {
		return
	}
	h.hub.Broadcast(env.Room, sess.ID, msg)
	h.metrics.RelayedEvents.WithLabelValues(env.Event).Inc()
}

// inRoom reports whether the session currently occupies room. Presence
// mutations claiming any other room are dropped wholesale: the registry must
// record state only for rooms the connection is joined to, or disconnect
// (which purges the joined room alone) would leave the entry behind forever.
func (h *Handler) inRoom(sess *Session, room string) bool {
	if room == "" {
		return false
	}
	current, ok := h.hub.RoomOf(sess.ID)
	if !ok || current != room {
		h.logger.Debug("Dropping presence update for a room the session is not in",
			slog.String("connID", sess.ID.String()), slog.String("claimed", room))
		return false
	}
	return true
}

func (h *Handler) handleCursor(sess *Session, env Envelope) {
	if !h.inRoom(sess, env.Room) {
		return
	}
	// A cursor update before announce records nothing but is still relayed.
	h.registry.SetCursor(env.Room, sess.ClientID(), env.Payload)
	h.relay(sess, env)
}

func (h *Handler) handleAnnounce(sess *Session, env Envelope) {
	if !h.inRoom(sess, env.Room) {
		return
	}
	userID := sess.UserID
	if userID == "" {
		// Anonymous connections may self-report an identity for display.
		userID = gjson.GetBytes(env.Payload, "userId").String()
	}
	stored := h.registry.Announce(env.Room, Participant{
		ClientID: sess.ClientID(),
		UserID:   userID,
		Name:     gjson.GetBytes(env.Payload, "name").String(),
		Color:    gjson.GetBytes(env.Payload, "color").String(),
	})

	msg, err := encodeEvent(EvtPresenceAnnounce, env.Room, stored)
	if err != nil {
		return
	}
	h.hub.Broadcast(env.Room, sess.ID, msg)
	h.metrics.RelayedEvents.WithLabelValues(env.Event).Inc()
}

func (h *Handler) handleActive(sess *Session, env Envelope) {
	if !h.inRoom(sess, env.Room) {
		return
	}
	h.registry.SetActive(env.Room, sess.ClientID(), env.Payload)
	h.relay(sess, env)
}

// handleClear rebroadcasts a synthesized {clientId} payload rather than the
// sender's raw one, so peers always learn whose selection to clear even when
// the client sent an empty payload.
func (h *Handler) handleClear(sess *Session, env Envelope) {
	if !h.inRoom(sess, env.Room) {
		return
	}
	h.registry.ClearActive(env.Room, sess.ClientID())
	msg, err := encodeEvent(EvtPresenceClear, env.Room, leftPayload{ClientID: sess.ClientID()})
	if err != nil {
		return
	}
	h.hub.Broadcast(env.Room, sess.ID, msg)
	h.metrics.RelayedEvents.WithLabelValues(env.Event).Inc()
}

// announceLeft purges the session's presence entry in room and, if one
// existed, broadcasts the departure to the remaining members.
func (h *Handler) announceLeft(room string, sess *Session) {
	if !h.registry.Remove(room, sess.ClientID()) {
		return
	}
	msg, err := encodeEvent(EvtPresenceLeft, room, leftPayload{ClientID: sess.ClientID()})
	if err != nil {
		return
	}
	h.hub.Broadcast(room, sess.ID, msg)
}
