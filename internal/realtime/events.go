package realtime

import "encoding/json"

// Inbound event names (client -> server).
const (
	EvtJoin        = "mindmap:join"
	EvtNodesChange = "mindmap:nodes:change"
	EvtEdgesChange = "mindmap:edges:change"
	EvtConnect     = "mindmap:connect"
	EvtViewport    = "mindmap:viewport"
	EvtCursorMove  = "cursor:move"

	EvtPresenceAnnounce = "presence:announce"
	EvtPresenceActive   = "presence:active"
	EvtPresenceClear    = "presence:clear"
)

// Outbound event names (server -> client).
const (
	EvtJoined        = "mindmap:joined"
	EvtPresenceState = "presence:state"
	EvtPresenceLeft  = "presence:left"
)

// Envelope is the wire framing for every realtime message. Relayed payloads
// pass through the server as raw JSON, untouched.
type Envelope struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Participant is one entry in a room's presence set.
type Participant struct {
	ClientID string          `json:"clientId"`
	UserID   string          `json:"userId,omitempty"`
	Name     string          `json:"name,omitempty"`
	Color    string          `json:"color,omitempty"`
	Cursor   json.RawMessage `json:"cursor,omitempty"`
	Active   json.RawMessage `json:"active,omitempty"`
}

type joinedPayload struct {
	Room    string `json:"room"`
	CanEdit bool   `json:"canEdit"`
}

type leftPayload struct {
	ClientID string `json:"clientId"`
}

func encodeEvent(event, room string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Room: room, Payload: raw})
}

func encodeRaw(event, room string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Room: room, Payload: payload})
}
