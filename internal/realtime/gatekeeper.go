package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/aditya/rideshare/internal/auth"
	"github.com/aditya/rideshare/internal/models"
	"github.com/gorilla/websocket"
)

// CloseForbidden is sent when a connection is refused or its membership is
// revoked mid-session.
const CloseForbidden = 4403

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotParticipant       = errors.New("not a participant of this ride")
	ErrMembershipRevoked    = errors.New("ride membership revoked")

	errEmptyMessage   = errors.New("Empty message received")
	errMissingMessage = errors.New("message field is required")
)

// ConnState is the lifecycle of a chat connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateAuthorized
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthorized:
		return "authorized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the part of *websocket.Conn the gatekeeper drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ChatBackend is what a connection needs from the chat service.
type ChatBackend interface {
	IsParticipant(ctx context.Context, rideID, userID string) (bool, error)
	History(ctx context.Context, rideID string) ([]models.ChatPayload, error)
	PostMessage(ctx context.Context, rideID, userID, text string) error
}

// Gatekeeper authenticates and authorizes chat connections and re-checks
// membership on every inbound message.
type Gatekeeper struct {
	auth auth.Validator
	chat ChatBackend
	hub  *Hub

	// OnTransition, when set, observes every state change.
	OnTransition func(rideID string, from, to ConnState)
}

func NewGatekeeper(validator auth.Validator, chat ChatBackend, hub *Hub) *Gatekeeper {
	return &Gatekeeper{
		auth: validator,
		chat: chat,
		hub:  hub,
	}
}

type session struct {
	gk       *Gatekeeper
	conn     Conn
	rideID   string
	identity *auth.Identity
	state    ConnState
	writeMu  sync.Mutex
}

// Serve runs a connection from handshake to close and blocks until it ends.
// The returned error says why the server closed it; nil means the client
// went away.
func (g *Gatekeeper) Serve(ctx context.Context, conn Conn, rideID, credential string) error {
	s := &session{gk: g, conn: conn, rideID: rideID, state: StateConnecting}
	defer func() {
		s.transition(StateClosed)
		conn.Close()
	}()

	identity, err := g.auth.ValidateCredential(credential)
	if err != nil {
		log.Printf("chat: access denied to ride %s: %v", rideID, err)
		s.closeWith(CloseForbidden, "authentication failed")
		return ErrAuthenticationFailed
	}
	s.identity = identity
	s.transition(StateAuthenticated)

	ok, err := g.chat.IsParticipant(ctx, rideID, identity.UserID)
	if err != nil {
		s.closeWith(websocket.CloseInternalServerErr, "membership check failed")
		return err
	}
	if !ok {
		log.Printf("chat: user %s is not in ride %s", identity.UserID, rideID)
		s.closeWith(CloseForbidden, "not a member of this ride")
		return ErrNotParticipant
	}
	s.transition(StateAuthorized)

	sub := g.hub.Subscribe(rideID)
	defer g.hub.Unsubscribe(sub)

	history, err := g.chat.History(ctx, rideID)
	if err != nil {
		s.closeWith(websocket.CloseInternalServerErr, "history unavailable")
		return err
	}
	// Anything published between Subscribe and History is in both; the
	// pump skips buffered frames no newer than the last replayed one.
	var replayedUpTo time.Time
	for _, p := range history {
		if err := s.writeJSON(p); err != nil {
			return nil
		}
		if ts, ok := payloadTime(p.Timestamp); ok && ts.After(replayedUpTo) {
			replayedUpTo = ts
		}
	}
	s.transition(StateOpen)

	go s.writePump(sub, replayedUpTo)
	return s.readPump(ctx)
}

func (s *session) transition(to ConnState) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	if s.gk.OnTransition != nil {
		s.gk.OnTransition(s.rideID, from, to)
	}
}

func (s *session) readPump(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("chat: read error on ride %s: %v", s.rideID, err)
			}
			return nil
		}

		// The user may have left the ride since the last message.
		ok, err := s.gk.chat.IsParticipant(ctx, s.rideID, s.identity.UserID)
		if err != nil {
			s.closeWith(websocket.CloseInternalServerErr, "membership check failed")
			return err
		}
		if !ok {
			log.Printf("chat: user %s no longer in ride %s, closing", s.identity.UserID, s.rideID)
			s.closeWith(CloseForbidden, "no longer a member of this ride")
			return ErrMembershipRevoked
		}

		text, err := ParseInbound(data)
		if err != nil {
			_ = s.writeJSON(models.ErrorPayload{Error: err.Error()})
			continue
		}

		if err := s.gk.chat.PostMessage(ctx, s.rideID, s.identity.UserID, text); err != nil {
			log.Printf("chat: post message to ride %s: %v", s.rideID, err)
			_ = s.writeJSON(models.ErrorPayload{Error: "message could not be delivered"})
		}
	}
}

func (s *session) writePump(sub *Subscription, replayedUpTo time.Time) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.C():
			if !ok {
				return
			}
			if replayed(data, replayedUpTo) {
				continue
			}
			if err := s.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// replayed reports whether a live frame was already sent as history.
// Frames without a readable timestamp always go out.
func replayed(data []byte, upTo time.Time) bool {
	if upTo.IsZero() {
		return false
	}
	var frame struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return false
	}
	ts, ok := payloadTime(frame.Timestamp)
	return ok && !ts.After(upTo)
}

// payloadTime parses a payload timestamp. RFC3339Nano drops trailing zeros,
// so the strings do not compare in time order.
func payloadTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (s *session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *session) closeWith(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// ParseInbound extracts the chat text from a client frame. A JSON object
// must carry a non-empty "message"; anything that is not JSON is taken as
// plain text.
func ParseInbound(data []byte) (string, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", errEmptyMessage
	}

	var in struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return raw, nil
	}

	var text string
	if err := json.Unmarshal(in.Message, &text); err != nil || strings.TrimSpace(text) == "" {
		return "", errMissingMessage
	}
	return text, nil
}
