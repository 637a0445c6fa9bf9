package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"studio-live/relay"
)

// Channel is the control connection to the relay. Implemented over WebSocket
// in production; tests plug a fake.
type Channel interface {
	Send(evt relay.Event) error
	Close() error
}

// EventHandler receives every server-emitted relay event, in arrival order.
type EventHandler func(evt relay.Event)

// WSChannel is the gorilla/websocket implementation of Channel.
type WSChannel struct {
	log     *slog.Logger
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  sync.Once
	onEvent EventHandler
	onError func(error)
}

// DialChannel connects to the relay and starts the read loop. Events are
// dispatched one at a time from a single goroutine, so handler code sees
// relay events in the order the server sent them.
func DialChannel(ctx context.Context, url string, onEvent EventHandler, onError func(error), log *slog.Logger) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}
	ch := &WSChannel{log: log, conn: conn, onEvent: onEvent, onError: onError}
	go ch.readLoop()
	return ch, nil
}

func (ch *WSChannel) Send(evt relay.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return ch.conn.WriteMessage(websocket.TextMessage, raw)
}

func (ch *WSChannel) Close() error {
	var err error
	ch.closed.Do(func() {
		err = ch.conn.Close()
	})
	return err
}

func (ch *WSChannel) readLoop() {
	defer ch.Close()
	for {
		_, raw, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ch.log.Warn("Relay channel read error", "err", err)
				if ch.onError != nil {
					ch.onError(err)
				}
			}
			return
		}
		var evt relay.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			ch.log.Warn("Failed to parse relay event", "err", err)
			continue
		}
		if ch.onEvent != nil {
			ch.onEvent(evt)
		}
	}
}
