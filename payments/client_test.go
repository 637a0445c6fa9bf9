package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Passes_Payload_Through(t *testing.T) {
	req := require.New(t)

	var gotPath, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionId":"cs_123","url":"https://pay.example.com/cs_123"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret", 5*time.Second, slog.Default())

	payload := json.RawMessage(`{"priceId":"price_1","customerId":"cus_1"}`)
	response, err := client.CreateCheckoutSession(context.Background(), payload)
	req.NoError(err)

	// The provider payload crosses untouched in both directions
	req.Equal("/createCheckoutSession", gotPath)
	req.Equal("Bearer sk_test_secret", gotAuth)
	req.JSONEq(string(payload), string(gotBody))
	req.JSONEq(`{"sessionId":"cs_123","url":"https://pay.example.com/cs_123"}`, string(response))
}

func TestClient_Surfaces_Provider_Rejection(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"card_declined"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret", 5*time.Second, slog.Default())

	_, err := client.CancelSubscription(context.Background(), json.RawMessage(`{}`))
	req.Error(err)
	req.Contains(err.Error(), "402")
}

func TestClient_Respects_Context_Cancel(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context; otherwise
		// server.Close() deadlocks waiting on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret", 5*time.Second, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreatePortalSession(ctx, json.RawMessage(`{}`))
	req.Error(err)
}

func TestClient_Routes_Each_Function(t *testing.T) {
	req := require.New(t)

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_secret", 5*time.Second, slog.Default())
	ctx := context.Background()
	empty := json.RawMessage(`{}`)

	_, err := client.CreateCheckoutSession(ctx, empty)
	req.NoError(err)
	_, err = client.CreatePortalSession(ctx, empty)
	req.NoError(err)
	_, err = client.ListPaymentMethods(ctx, empty)
	req.NoError(err)
	_, err = client.CancelSubscription(ctx, empty)
	req.NoError(err)

	req.Equal([]string{
		"/createCheckoutSession",
		"/createPortalSession",
		"/listPaymentMethods",
		"/cancelSubscription",
	}, paths)
}
