// Package relay is the signaling intermediary: it forwards connection
// negotiation messages between two parties in a room who cannot yet talk to
// each other directly. It never inspects SDP or candidate payloads.
package relay

import "encoding/json"

// Client to server event names.
const (
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Server to client event names.
const (
	EventRoomJoined = "room-joined"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventError      = "error"
)

// Event is the wire envelope for every relay message, in both directions.
// Join and leave carry {roomId, userId}; negotiation events carry the
// opaque offer/answer/candidate payload plus the room.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// IsNegotiation reports whether the event is part of the offer/answer/ICE
// exchange and must be forwarded to the other room participant.
func (e Event) IsNegotiation() bool {
	switch e.Type {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}
