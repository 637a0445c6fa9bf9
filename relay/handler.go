package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests into signaling connections.
type Handler struct {
	log      *slog.Logger
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		log: log,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	p := &peer{
		hub:        h.hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		lastActive: time.Now(),
	}
	h.hub.register <- p

	go p.writePump()
	go p.readPump()
}
