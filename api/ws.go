package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studio-live/domain"
)

const (
	wsWriteDeadline = 10 * time.Second
	wsPingInterval  = 30 * time.Second
	wsReadDeadline  = 60 * time.Second
)

// wsSink pushes live snapshots over one websocket connection. It implements
// both sink contracts; a given connection only ever uses one of them.
type wsSink struct {
	log  *slog.Logger
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSSink(log *slog.Logger, conn *websocket.Conn) *wsSink {
	return &wsSink{log: log, conn: conn}
}

type messagesFrame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversationId"`
	Messages       []domain.Message `json:"messages"`
}

type conversationsFrame struct {
	Type          string                `json:"type"`
	Conversations []domain.Conversation `json:"conversations"`
}

func (s *wsSink) Messages(ctx context.Context, conversationID string, messages []domain.Message) error {
	return s.write(messagesFrame{Type: "messages", ConversationID: conversationID, Messages: messages})
}

func (s *wsSink) Conversations(ctx context.Context, conversations []domain.Conversation) error {
	return s.write(conversationsFrame{Type: "conversations", Conversations: conversations})
}

func (s *wsSink) write(frame any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return s.conn.WriteJSON(frame)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteDeadline))
}

func (s *wsSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
}

// serve keeps the connection alive with pings and detects the client going
// away. Returns when the client disconnects or the context ends.
func (s *wsSink) serve(ctx context.Context) {
	done := make(chan struct{})

	s.conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	go func() {
		defer close(done)
		for {
			// Subscribers never send data frames; the read loop only
			// services control frames and surfaces disconnects.
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.close()
			<-done
			return
		case <-done:
			s.close()
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				s.close()
				<-done
				return
			}
		}
	}
}
