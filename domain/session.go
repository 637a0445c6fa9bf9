package domain

// ConnState mirrors the lifecycle of the underlying peer connection.
// The session never drives these transitions itself, it only observes
// them and republishes; the table below makes the legal set auditable.
type ConnState string

const (
	ConnNew          ConnState = "new"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnFailed       ConnState = "failed"
	ConnClosed       ConnState = "closed"
)

var connTransitions = map[ConnState][]ConnState{
	ConnNew:          {ConnConnecting, ConnClosed, ConnFailed},
	ConnConnecting:   {ConnConnected, ConnFailed, ConnClosed, ConnDisconnected},
	ConnConnected:    {ConnDisconnected, ConnFailed, ConnClosed},
	ConnDisconnected: {ConnConnecting, ConnConnected, ConnFailed, ConnClosed},
	ConnFailed:       {ConnClosed, ConnConnecting},
	ConnClosed:       {},
}

// CanTransition reports whether moving from one connection state to
// another is part of the legal transition set.
func CanTransition(from, to ConnState) bool {
	for _, next := range connTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PeerSession tracks the observable state of one real-time connection.
// At most one peer connection is active per session; starting a new
// stream while one is live stops the previous one first.
type PeerSession struct {
	RoomID    string
	UserID    string
	State     ConnState
	Streaming bool
}

// NewPeerSession returns a session in its initial state.
func NewPeerSession() *PeerSession {
	return &PeerSession{State: ConnNew}
}

// Apply moves the session to the observed state. Illegal transitions are
// rejected so a stale event arriving after teardown cannot resurrect the
// session; the caller decides whether to log them.
func (s *PeerSession) Apply(to ConnState) bool {
	if !CanTransition(s.State, to) {
		return false
	}
	s.State = to
	return true
}

// InRoom reports whether the session currently belongs to a room.
func (s *PeerSession) InRoom() bool {
	return s.RoomID != ""
}
