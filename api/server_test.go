package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studio-live/auth"
	"studio-live/contract"
	"studio-live/domain"
	"studio-live/errors"
	"studio-live/observability"
	"studio-live/payments"
	"studio-live/repositories"
	"studio-live/search"
	"studio-live/storage"
)

type chatStub struct {
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
}

func newChatStub() *chatStub {
	return &chatStub{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (s *chatStub) GetOrCreateConversation(ctx context.Context, userID, displayName string) (domain.Conversation, error) {
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			return conv, nil
		}
	}
	conv := domain.Conversation{
		ID:           uuid.NewString(),
		Participants: []string{userID, domain.OperatorID},
		CreatedAt:    time.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *chatStub) SendMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	if !domain.ValidContent(content) {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if _, ok := s.conversations[conversationID]; !ok {
		return domain.Message{}, errors.ErrConversationUnknown
	}
	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)
	return message, nil
}

func (s *chatStub) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	return nil
}

func (s *chatStub) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.messages[conversationID], nil
}

func (s *chatStub) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, conv := range s.conversations {
		out = append(out, conv)
	}
	return out, nil
}

func (s *chatStub) Subscribe(conversationID string, sink contract.MessageSink) contract.Unsubscribe {
	return func() {}
}

func (s *chatStub) SubscribeAll(sink contract.ConversationSink) contract.Unsubscribe {
	return func() {}
}

type accountsStub struct {
	accounts map[string]repositories.Account
}

func (s *accountsStub) Store(account repositories.Account) error {
	s.accounts[account.Email] = account
	return nil
}

func (s *accountsStub) FindByEmail(email string) (repositories.Account, error) {
	account, ok := s.accounts[email]
	if !ok {
		return repositories.Account{}, errors.ErrUserUnknown
	}
	return account, nil
}

type testEnv struct {
	server *httptest.Server
	chat   *chatStub
	index  *search.MessageIndex
}

func newTestEnv(t *testing.T, providerURL string) *testEnv {
	t.Helper()
	log := slog.Default()

	chat := newChatStub()
	issuer := auth.NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	authService := auth.NewService(log, &accountsStub{accounts: make(map[string]repositories.Account)}, issuer)

	index, err := search.Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	attachments, err := storage.NewAttachmentStore(t.TempDir(), log)
	require.NoError(t, err)

	paymentsClient := payments.NewClient(providerURL, "sk_test", 5*time.Second, log)

	apiServer := NewServer(
		log, chat, authService, paymentsClient,
		index, attachments, observability.NewMonitor(log), []string{"*"},
	)
	mux := http.NewServeMux()
	apiServer.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testEnv{server: server, chat: chat, index: index}
}

func (e *testEnv) post(t *testing.T, path, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	resp := e.post(t, "/api/register", `{"email":"ops@example.com","display_name":"Ops","password":"Sup3r$ecretPass!"}`, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.post(t, "/api/login", `{"email":"ops@example.com","password":"Sup3r$ecretPass!"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestAPI_Conversation_Flow(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	// The widget opens (or reopens) the visitor's thread
	resp := env.post(t, "/api/conversations", `{"userId":"alice","displayName":"Alice"}`, "")
	req.Equal(http.StatusOK, resp.StatusCode)

	var conv domain.Conversation
	req.NoError(json.NewDecoder(resp.Body).Decode(&conv))
	req.NotEmpty(conv.ID)

	// Sending and reading back
	resp = env.post(t, "/api/conversations/"+conv.ID+"/messages", `{"senderId":"alice","content":"hello"}`, "")
	req.Equal(http.StatusCreated, resp.StatusCode)

	resp = env.get(t, "/api/conversations/"+conv.ID+"/messages", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	var messages []domain.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&messages))
	req.Len(messages, 1)
	req.Equal("hello", messages[0].Content)
}

func TestAPI_SendMessage_Rejects_Empty(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.post(t, "/api/conversations", `{"userId":"alice"}`, "")
	req.Equal(http.StatusOK, resp.StatusCode)
	var conv domain.Conversation
	req.NoError(json.NewDecoder(resp.Body).Decode(&conv))

	resp = env.post(t, "/api/conversations/"+conv.ID+"/messages", `{"senderId":"alice","content":"   "}`, "")
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SendMessage_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.post(t, "/api/conversations/nope/messages", `{"senderId":"alice","content":"hello"}`, "")
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Conversation_Requires_UserID(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.post(t, "/api/conversations", `{"displayName":"Alice"}`, "")
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Operator_Endpoints_Require_Token(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.get(t, "/api/conversations", "")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = env.get(t, "/api/conversations", "not-a-token")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	token := env.login(t)
	resp = env.get(t, "/api/conversations", token)
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestAPI_Login_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")
	env.login(t)

	resp := env.post(t, "/api/login", `{"email":"ops@example.com","password":"Wr0ng$ecretPass!"}`, "")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Search(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")
	token := env.login(t)

	req.NoError(env.index.Index(domain.Message{
		ID:             uuid.New(),
		ConversationID: "conv-1",
		SenderID:       "alice",
		Content:        "booking a haircut",
		CreatedAt:      time.Now().UTC(),
	}))

	resp := env.get(t, "/api/search?q=haircut", token)
	req.Equal(http.StatusOK, resp.StatusCode)

	var hits []search.Hit
	req.NoError(json.NewDecoder(resp.Body).Decode(&hits))
	req.Len(hits, 1)
	req.Equal("conv-1", hits[0].ConversationID)

	// Missing query
	resp = env.get(t, "/api/search", token)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Attachment_Roundtrip(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	pngBytes := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	resp, err := http.Post(env.server.URL+"/api/attachments", "application/octet-stream", bytes.NewReader(pngBytes))
	req.NoError(err)
	req.Equal(http.StatusCreated, resp.StatusCode)

	var attachment storage.Attachment
	req.NoError(json.NewDecoder(resp.Body).Decode(&attachment))
	req.Equal("image/png", attachment.Mime)

	resp = env.get(t, "/api/attachments/"+attachment.ID, "")
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestAPI_Attachment_Rejects_Unknown_Type(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp, err := http.Post(env.server.URL+"/api/attachments", "text/plain", bytes.NewBufferString("#!/bin/sh"))
	req.NoError(err)
	req.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestAPI_Billing_Passes_Through(t *testing.T) {
	req := require.New(t)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/createCheckoutSession", r.URL.Path)
		w.Write([]byte(`{"sessionId":"cs_123"}`))
	}))
	defer provider.Close()

	env := newTestEnv(t, provider.URL)
	token := env.login(t)

	resp := env.post(t, "/api/billing/checkout", `{"priceId":"price_1"}`, token)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("cs_123", body["sessionId"])
}

func TestAPI_Billing_Requires_Token(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.post(t, "/api/billing/checkout", `{}`, "")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "http://unused")

	resp := env.get(t, "/healthz", "")
	req.Equal(http.StatusOK, resp.StatusCode)

	var stats observability.HealthStats
	req.NoError(json.NewDecoder(resp.Body).Decode(&stats))
}
