// Package api exposes the HTTP surface: chat endpoints for the booking site
// widget, live websocket feeds, operator dashboard endpoints, billing
// pass-through and the health and metrics probes.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"studio-live/auth"
	"studio-live/observability"
	"studio-live/payments"
	"studio-live/search"
	"studio-live/services"
	"studio-live/storage"
)

type Server struct {
	log         *slog.Logger
	chat        services.IChatService
	auth        *auth.Service
	payments    *payments.Client
	index       *search.MessageIndex
	attachments *storage.AttachmentStore
	monitor     *observability.Monitor
	upgrader    websocket.Upgrader
}

func NewServer(
	log *slog.Logger,
	chat services.IChatService,
	authService *auth.Service,
	paymentsClient *payments.Client,
	index *search.MessageIndex,
	attachments *storage.AttachmentStore,
	monitor *observability.Monitor,
	allowedOrigins []string,
) *Server {
	return &Server{
		log:         log,
		chat:        chat,
		auth:        authService,
		payments:    paymentsClient,
		index:       index,
		attachments: attachments,
		monitor:     monitor,
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

// Register wires every route onto the shared mux. The relay websocket and the
// metrics handler are mounted by the caller alongside these.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("POST /api/conversations", s.handleGetOrCreateConversation)
	mux.HandleFunc("GET /api/conversations", s.requireAuth(s.handleListConversations))
	mux.HandleFunc("GET /api/conversations/live", s.requireAuth(s.handleConversationsLive))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /api/conversations/{id}/live", s.handleMessagesLive)

	mux.HandleFunc("POST /api/attachments", s.handleUploadAttachment)
	mux.HandleFunc("GET /api/attachments/{id}", s.handleDownloadAttachment)

	mux.HandleFunc("GET /api/search", s.requireAuth(s.handleSearch))

	mux.HandleFunc("POST /api/billing/checkout", s.billingHandler(s.payments.CreateCheckoutSession))
	mux.HandleFunc("POST /api/billing/portal", s.billingHandler(s.payments.CreatePortalSession))
	mux.HandleFunc("POST /api/billing/payment-methods", s.billingHandler(s.payments.ListPaymentMethods))
	mux.HandleFunc("POST /api/billing/cancel", s.billingHandler(s.payments.CancelSubscription))

	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// requireAuth guards operator endpoints with the dashboard token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}

type claimsKey struct{}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

// billingHandler forwards an opaque JSON body to one payment provider call
// and relays the provider response untouched.
func (s *Server) billingHandler(call func(context.Context, json.RawMessage) (json.RawMessage, error)) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		response, err := call(ctx, payload)
		if err != nil {
			s.log.Warn("Billing call failed", "err", err)
			writeError(w, http.StatusBadGateway, "payment provider unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	})
}
