package realtime

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the process-wide room -> participant presence table. It is an
// owned component, instantiated once at startup and handed to every
// connection handler; membership here always mirrors the hub's room groups.
// It holds presence metadata only, never document content.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Participant

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]*Participant),
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// Snapshot returns a copy of the room's participants, excluding the given
// client, ordered by client id. An unknown room yields an empty slice.
func (g *Registry) Snapshot(room, exceptClientID string) []Participant {
	g.mu.RLock()
	defer g.mu.RUnlock()

	participants := make([]Participant, 0, len(g.rooms[room]))
	for id, p := range g.rooms[room] {
		if id == exceptClientID {
			continue
		}
		participants = append(participants, *p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ClientID < participants[j].ClientID
	})
	return participants
}

// Announce upserts the caller's participant entry. Cursor and active state
// already recorded for the same client survive the upsert, so a re-announce
// never loses presence detail. The stored entry is returned by value.
func (g *Registry) Announce(room string, p Participant) Participant {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[room]
	if !ok {
		members = make(map[string]*Participant)
		g.rooms[room] = members
	}

	if existing, ok := members[p.ClientID]; ok {
		p.Cursor = existing.Cursor
		p.Active = existing.Active
	}
	stored := p
	members[p.ClientID] = &stored

	g.logger.Debug("Participant announced", slog.String("room", room), slog.String("clientID", p.ClientID))
	return stored
}

// SetCursor records the client's cursor position. Updates arriving before
// the client has announced are a no-op and report false.
func (g *Registry) SetCursor(room, clientID string, cursor json.RawMessage) bool {
	return g.update(room, clientID, func(p *Participant) { p.Cursor = cursor })
}

// SetActive records the client's activity indicator.
func (g *Registry) SetActive(room, clientID string, active json.RawMessage) bool {
	return g.update(room, clientID, func(p *Participant) { p.Active = active })
}

// ClearActive drops the client's activity indicator.
func (g *Registry) ClearActive(room, clientID string) bool {
	return g.update(room, clientID, func(p *Participant) { p.Active = nil })
}

func (g *Registry) update(room, clientID string, mutate func(*Participant)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.rooms[room][clientID]
	if !ok {
		return false
	}
	mutate(p)
	return true
}

// Remove deletes the client's entry, reporting whether one existed. Empty
// rooms are purged. Idempotent.
func (g *Registry) Remove(room, clientID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[clientID]; !ok {
		return false
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(g.rooms, room)
		g.logger.Debug("Removed empty room", slog.String("room", room))
	}
	return true
}
