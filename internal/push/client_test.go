package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	logx "remindbot/pkg/logx"
)

type memTokens struct {
	mu      sync.Mutex
	tokens  map[int64][]string
	deleted []string
}

func (m *memTokens) DeviceTokens(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens[userID]...), nil
}

func (m *memTokens) DeleteDeviceToken(_ context.Context, token string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, token)
	m.mu.Unlock()
	return nil
}

func TestSendToUser(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []sendRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages:send" || r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req sendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch req.Message.Token {
		case "dead":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"status":"NOT_FOUND","details":[{"errorCode":"UNREGISTERED"}]}}`))
		case "flaky":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"status":"UNAVAILABLE"}}`))
		default:
			_, _ = w.Write([]byte(`{"name":"projects/x/messages/1"}`))
		}
	}))
	defer srv.Close()

	tokens := &memTokens{tokens: map[int64][]string{7: {"good", "dead", "flaky"}}}
	c, err := New(Config{Endpoint: srv.URL, Token: "secret"}, tokens, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	sent, err := c.SendToUser(context.Background(), 7, "❗ Reminder", "water plants", map[string]string{"noteId": "3"})
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if err == nil {
		t.Fatal("flaky token error should be reported")
	}
	if len(tokens.deleted) != 1 || tokens.deleted[0] != "dead" {
		t.Fatalf("deleted = %v", tokens.deleted)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("requests = %d, want 3", len(seen))
	}
	if seen[0].Message.Notification.Title != "❗ Reminder" || seen[0].Message.Data["noteId"] != "3" {
		t.Fatalf("payload = %+v", seen[0])
	}
}

func TestSendToUserWithoutDevices(t *testing.T) {
	t.Parallel()
	c, err := New(Config{Endpoint: "http://127.0.0.1:1"}, &memTokens{}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	sent, err := c.SendToUser(context.Background(), 1, "t", "b", nil)
	if sent != 0 || err != nil {
		t.Fatalf("SendToUser = %d, %v", sent, err)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, &memTokens{}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}
