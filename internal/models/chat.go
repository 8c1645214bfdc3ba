package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SystemAuthorFirstName is the display name used for lifecycle messages.
const SystemAuthorFirstName = "System"

// ChatPayload is the wire shape of a chat event, identical for history
// replay and live push.
type ChatPayload struct {
	Message   string `json:"message"`
	FirstName string `json:"First Name"`
	LastName  string `json:"Last Name"`
	Timestamp string `json:"timestamp"`
}

// FormatTimestamp renders t the way chat payloads carry it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewUserPayload wraps text authored by u.
func NewUserPayload(u *User, text string, at time.Time) ChatPayload {
	return ChatPayload{
		Message:   text,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Timestamp: FormatTimestamp(at),
	}
}

// NewSystemPayload wraps a lifecycle message.
func NewSystemPayload(text string, at time.Time) ChatPayload {
	return ChatPayload{
		Message:   text,
		FirstName: SystemAuthorFirstName,
		LastName:  "",
		Timestamp: FormatTimestamp(at),
	}
}

// Value stores the payload as JSONB.
func (p ChatPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads the payload from a JSONB column.
func (p *ChatPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = ChatPayload{}
		return nil
	default:
		return fmt.Errorf("chat payload: unsupported type %T", src)
	}
}

type ChatMessage struct {
	ID        string      `db:"id" json:"id"`
	RideID    string      `db:"ride_id" json:"ride_id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Payload   ChatPayload `db:"payload" json:"payload"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// ErrorPayload is echoed to a single sender when an inbound message is
// unusable. It is never broadcast.
type ErrorPayload struct {
	Error string `json:"error"`
}
