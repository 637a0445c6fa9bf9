package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studio-live/observability"
)

const (
	maxMessageSize   = 64 * 1024 // SDP offers are a few KB, candidates much less
	readDeadline     = 60 * time.Second
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
	inactivityLimit  = 2 * time.Minute
	sendBufferSize   = 64
	maxRoomOccupancy = 2
)

type inbound struct {
	peer  *peer
	event Event
}

// peer is one connected signaling participant.
type peer struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	roomID     string
	lastActive time.Time
	mu         sync.Mutex
}

// Hub maintains the set of connected peers and their rooms, and forwards
// negotiation events between the two participants of a room. All room state
// is owned by the Run goroutine; handlers only push onto channels.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics
	monitor *observability.Monitor

	register   chan *peer
	unregister chan *peer
	inbound    chan inbound
	stopChan   chan struct{}

	// rooms maps roomID -> userID -> peer. Two participants max.
	rooms map[string]map[string]*peer
}

func NewHub(log *slog.Logger, metrics *Metrics, monitor *observability.Monitor) *Hub {
	return &Hub{
		log:        log,
		metrics:    metrics,
		monitor:    monitor,
		register:   make(chan *peer),
		unregister: make(chan *peer),
		inbound:    make(chan inbound),
		stopChan:   make(chan struct{}),
		rooms:      make(map[string]map[string]*peer),
	}
}

// Run owns all room state. It must be started exactly once.
func (h *Hub) Run() {
	for {
		select {
		case p := <-h.register:
			h.metrics.PeerConnected()
			h.monitor.PeerConnected()
			h.log.Info("Peer connected", "remote", p.conn.RemoteAddr().String())

		case p := <-h.unregister:
			h.removeFromRoom(p)
			close(p.send)
			h.metrics.PeerDisconnected()
			h.monitor.PeerDisconnected()
			h.log.Info("Peer disconnected", "user", p.userID)

		case in := <-h.inbound:
			h.handle(in.peer, in.event)

		case <-h.stopChan:
			for _, members := range h.rooms {
				for _, p := range members {
					p.conn.Close()
					close(p.send)
				}
			}
			h.rooms = make(map[string]map[string]*peer)
			return
		}
	}
}

// Close shuts the hub down and closes every connection.
func (h *Hub) Close() {
	close(h.stopChan)
}

func (h *Hub) handle(p *peer, evt Event) {
	switch evt.Type {
	case EventJoinRoom:
		h.join(p, evt)
	case EventLeaveRoom:
		h.leave(p)
	case EventOffer, EventAnswer, EventICECandidate:
		h.forward(p, evt)
	default:
		h.log.Warn("Unknown relay event", "type", evt.Type)
		p.sendEvent(Event{Type: EventError, Error: "unknown event type: " + evt.Type})
	}
}

// join places the peer in a room. The second participant's arrival is
// announced to the first one, which is the trigger for creating the offer.
func (h *Hub) join(p *peer, evt Event) {
	if evt.RoomID == "" || evt.UserID == "" {
		p.sendEvent(Event{Type: EventError, Error: "join-room requires roomId and userId"})
		return
	}
	if p.roomID != "" {
		h.removeFromRoom(p)
	}

	members, ok := h.rooms[evt.RoomID]
	if !ok {
		members = make(map[string]*peer)
		h.rooms[evt.RoomID] = members
		h.metrics.RoomOpened()
		h.monitor.RoomOpened()
	}
	if len(members) >= maxRoomOccupancy {
		p.sendEvent(Event{Type: EventError, RoomID: evt.RoomID, Error: "room is full"})
		return
	}

	p.userID = evt.UserID
	p.roomID = evt.RoomID
	members[evt.UserID] = p

	p.sendEvent(Event{Type: EventRoomJoined, RoomID: evt.RoomID, UserID: evt.UserID})
	for id, other := range members {
		if id != evt.UserID {
			other.sendEvent(Event{Type: EventUserJoined, RoomID: evt.RoomID, UserID: evt.UserID})
		}
	}
	h.log.Info("Peer joined room", "room", evt.RoomID, "user", evt.UserID, "occupancy", len(members))
}

func (h *Hub) leave(p *peer) {
	h.removeFromRoom(p)
}

// removeFromRoom detaches the peer from its room, announces the departure to
// the remaining participant, and garbage-collects empty rooms.
func (h *Hub) removeFromRoom(p *peer) {
	if p.roomID == "" {
		return
	}
	roomID := p.roomID
	members, ok := h.rooms[roomID]
	p.roomID = ""
	if !ok {
		return
	}
	delete(members, p.userID)
	for _, other := range members {
		other.sendEvent(Event{Type: EventUserLeft, RoomID: roomID, UserID: p.userID})
	}
	if len(members) == 0 {
		delete(h.rooms, roomID)
		h.metrics.RoomClosed()
		h.monitor.RoomClosed()
	}
}

// forward relays a negotiation event to the other participant of the room.
// Never echoed back to the sender.
func (h *Hub) forward(p *peer, evt Event) {
	roomID := evt.RoomID
	if roomID == "" {
		roomID = p.roomID
	}
	members, ok := h.rooms[roomID]
	if !ok {
		p.sendEvent(Event{Type: EventError, RoomID: roomID, Error: "no such room"})
		return
	}
	for id, other := range members {
		if id == p.userID {
			continue
		}
		other.sendEvent(evt)
		h.metrics.SignalRelayed(evt.Type)
		h.monitor.IncrSignalsRelayed()
	}
}

func (p *peer) sendEvent(evt Event) {
	bytes, err := json.Marshal(evt)
	if err != nil {
		p.hub.log.Error("Failed to marshal relay event", "err", err)
		return
	}
	select {
	case p.send <- bytes:
	default:
		// Slow consumer: drop the event rather than stall the hub loop.
		p.hub.log.Warn("Peer send buffer full, dropping event", "user", p.userID, "type", evt.Type)
	}
}

// readPump pumps events from the WebSocket connection into the hub.
func (p *peer) readPump() {
	defer func() {
		p.hub.unregister <- p
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	p.conn.SetPongHandler(func(string) error {
		p.mu.Lock()
		p.lastActive = time.Now()
		p.mu.Unlock()
		p.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.log.Warn("WebSocket read error", "err", err)
			}
			return
		}

		p.mu.Lock()
		p.lastActive = time.Now()
		p.mu.Unlock()

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			p.hub.log.Warn("Failed to parse relay event", "err", err)
			continue
		}
		p.hub.inbound <- inbound{peer: p, event: evt}
	}
}

// writePump pumps events from the hub to the WebSocket connection.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			p.mu.Lock()
			inactive := time.Since(p.lastActive) > inactivityLimit
			p.mu.Unlock()
			if inactive {
				p.hub.log.Info("Peer inactive, closing connection", "user", p.userID)
				return
			}
		}
	}
}
