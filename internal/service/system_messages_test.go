package service

import (
	"context"
	"testing"
	"time"

	"github.com/aditya/rideshare/internal/models"
)

func TestSystemMessageText(t *testing.T) {
	ana := &models.User{ID: "1", FirstName: "Ana", LastName: "Rao"}
	ben := &models.User{ID: "2", FirstName: "Ben", LastName: "Ito"}

	tests := []struct {
		name  string
		event SystemEvent
		want  string
	}{
		{
			name:  "created",
			event: SystemEvent{Kind: SystemEventCreated, Actor: ana, Pickup: "Gate 1", Destination: "Mall"},
			want:  "Ana Rao has created this ride from Gate 1 to Mall.",
		},
		{
			name:  "joined",
			event: SystemEvent{Kind: SystemEventJoined, Actor: ben},
			want:  "Ben Ito has joined this ride",
		},
		{
			name:  "left",
			event: SystemEvent{Kind: SystemEventLeft, Actor: ben},
			want:  "Ben Ito has left the ride.",
		},
		{
			name:  "host changed",
			event: SystemEvent{Kind: SystemEventHostChanged, Actor: ana, NewHost: ben},
			want:  "Ana Rao has left the ride. Ben Ito is now the host.",
		},
		{
			name:  "completed",
			event: SystemEvent{Kind: SystemEventCompleted, Actor: ana},
			want:  "Ana Rao has marked this ride as completed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SystemMessageText(tt.event); got != tt.want {
				t.Errorf("SystemMessageText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmitterRecordAndBroadcast(t *testing.T) {
	store := newMemStore()
	rec := newRecorder()
	emitter := NewSystemMessageEmitter(fakeChatRepo{store}, rec)
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	emitter.now = func() time.Time { return at }

	actor := &models.User{ID: "u1", FirstName: "Ana", LastName: "Rao"}
	payload, err := emitter.Record(context.Background(), "ride-1", SystemEvent{Kind: SystemEventJoined, Actor: actor})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if payload.FirstName != "System" || payload.LastName != "" {
		t.Errorf("author = %q %q, want System and empty", payload.FirstName, payload.LastName)
	}
	if payload.Timestamp != "2024-05-01T10:30:00Z" {
		t.Errorf("Timestamp = %q", payload.Timestamp)
	}

	stored := store.chat["ride-1"]
	if len(stored) != 1 || stored[0].UserID != "u1" || stored[0].Payload != payload {
		t.Fatalf("stored = %+v, want one message authored by u1", stored)
	}

	if len(rec.messages("ride-1")) != 0 {
		t.Error("Record() broadcast before commit")
	}
	emitter.Broadcast("ride-1", payload)
	if got := rec.messages("ride-1"); len(got) != 1 || got[0] != "Ana Rao has joined this ride" {
		t.Errorf("broadcast = %v", got)
	}
}
