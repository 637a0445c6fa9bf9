package api

import (
	"encoding/json"
	goerrors "errors"
	"io"
	"net/http"
	"strconv"

	"studio-live/auth"
	"studio-live/errors"
	"studio-live/search"
)

// Attachments are capped well below the relay frame limit so the widget can
// reference them inline.
const maxAttachmentBytes = 8 << 20

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.auth.Register(req); err != nil {
		if goerrors.Is(err, errors.ErrInvalidPassword) {
			writeError(w, http.StatusBadRequest, "password does not meet complexity requirements")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.auth.Login(req)
	if err != nil {
		if goerrors.Is(err, errors.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleGetOrCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	conversation, err := s.chat.GetOrCreateConversation(r.Context(), req.UserID, req.DisplayName)
	if err != nil {
		s.log.Error("Failed to get or create conversation", "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "conversation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.chat.ListConversations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "conversation list failed")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chat.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "message load failed")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderID string `json:"senderId"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message, err := s.chat.SendMessage(r.Context(), r.PathValue("id"), req.SenderID, req.Content)
	if err != nil {
		switch {
		case goerrors.Is(err, errors.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message content is empty")
		case goerrors.Is(err, errors.ErrConversationUnknown):
			writeError(w, http.StatusNotFound, "conversation not found")
		default:
			s.log.Error("Failed to send message", "conversation", r.PathValue("id"), "err", err)
			writeError(w, http.StatusInternalServerError, "message send failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.chat.MarkMessagesAsRead(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMessagesLive upgrades to a websocket and streams full ordered message
// snapshots for one conversation until the client disconnects.
func (s *Server) handleMessagesLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	sink := newWSSink(s.log, conn)
	unsubscribe := s.chat.Subscribe(r.PathValue("id"), sink)
	defer unsubscribe()

	sink.serve(r.Context())
}

// handleConversationsLive streams the full conversation list to the operator
// dashboard whenever any conversation changes.
func (s *Server) handleConversationsLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	sink := newWSSink(s.log, conn)
	unsubscribe := s.chat.SubscribeAll(sink)
	defer unsubscribe()

	sink.serve(r.Context())
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAttachmentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(data) > maxAttachmentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
		return
	}
	attachment, err := s.attachments.Save(data)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	path, err := s.attachments.Open(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	hits, err := s.index.Search(r.Context(), terms, r.URL.Query().Get("conversation"), limit)
	if err != nil {
		s.log.Error("Search failed", "terms", terms, "err", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}
