package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type memberChat struct {
	hub     *realtime.Hub
	members map[string]bool

	mu      sync.Mutex
	history []models.ChatPayload
}

func (c *memberChat) IsParticipant(ctx context.Context, rideID, userID string) (bool, error) {
	return c.members[userID], nil
}

func (c *memberChat) History(ctx context.Context, rideID string) ([]models.ChatPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatPayload(nil), c.history...), nil
}

func (c *memberChat) PostMessage(ctx context.Context, rideID, userID, text string) error {
	p := models.ChatPayload{Message: text, FirstName: "Ali", LastName: "Ahmed", Timestamp: "2024-05-01T10:31:00Z"}
	c.mu.Lock()
	c.history = append(c.history, p)
	c.mu.Unlock()
	c.hub.Publish(rideID, p)
	return nil
}

func newChatServer(t *testing.T) (*httptest.Server, *memberChat) {
	t.Helper()
	hub := realtime.NewHub(16)
	chat := &memberChat{
		hub:     hub,
		members: map[string]bool{testUserID: true},
		history: []models.ChatPayload{{Message: "Ali Ahmed has joined this ride", FirstName: "System", Timestamp: "2024-05-01T10:30:00Z"}},
	}
	gk := realtime.NewGatekeeper(tokenValidator{"good": testUserID, "outsider": "99999999-2222-3333-4444-555555555555"}, chat, hub)

	r := chi.NewRouter()
	NewChatHandler(gk).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chat
}

func dial(t *testing.T, srv *httptest.Server, rideID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rides/" + rideID + "/chat?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readPayload(t *testing.T, conn *websocket.Conn) models.ChatPayload {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var p models.ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return p
}

func TestChatSocketRejectsWith4403(t *testing.T) {
	srv, _ := newChatServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"bad token", "forged"},
		{"no token", ""},
		{"not a member", "outsider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dial(t, srv, testRideID, tt.token)

			_, _, err := conn.ReadMessage()
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				t.Fatalf("expected close frame, got %v", err)
			}
			if closeErr.Code != realtime.CloseForbidden {
				t.Errorf("close code = %d, want %d", closeErr.Code, realtime.CloseForbidden)
			}
		})
	}
}

func TestChatSocketReplaysThenRelays(t *testing.T) {
	srv, _ := newChatServer(t)
	conn := dial(t, srv, testRideID, "good")

	if got := readPayload(t, conn); got.Message != "Ali Ahmed has joined this ride" || got.FirstName != "System" {
		t.Fatalf("first frame = %+v, want history", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"on my way"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readPayload(t, conn); got.Message != "on my way" || got.FirstName != "Ali" {
		t.Errorf("relayed frame = %+v", got)
	}
}

func TestChatSocketMalformedRideID(t *testing.T) {
	srv, _ := newChatServer(t)

	resp, err := http.Get(srv.URL + "/ws/rides/nope/chat?token=good")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
