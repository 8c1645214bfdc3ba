package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/models"
)

func TestIsParticipant(t *testing.T) {
	f := newFixture()
	seedUsers(f)
	ctx := context.Background()
	ride := mustCreate(t, f, "host", models.VehicleTypeCar, false)
	mustJoin(t, f, ride.ID, "a")

	tests := []struct {
		name   string
		rideID string
		userID string
		want   bool
	}{
		{"host", ride.ID, "host", true},
		{"member", ride.ID, "a", true},
		{"stranger", ride.ID, "b", false},
		{"missing ride", "missing", "host", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.chat.IsParticipant(ctx, tt.rideID, tt.userID)
			if err != nil {
				t.Fatalf("IsParticipant() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsParticipant() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.rides.LeaveRide(ctx, ride.ID, "a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.chat.IsParticipant(ctx, ride.ID, "a"); ok {
		t.Error("member still a participant after leaving")
	}
}

func TestPostMessageAndHistory(t *testing.T) {
	f := newFixture()
	seedUsers(f)
	ctx := context.Background()
	ride := mustCreate(t, f, "host", models.VehicleTypeCar, false)
	mustJoin(t, f, ride.ID, "a")

	if err := f.chat.PostMessage(ctx, ride.ID, "a", "see you at 5"); err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}

	history, err := f.chat.History(ctx, ride.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Hana Host has created this ride from Campus to Airport.",
		"Ali Ahmed has joined this ride",
		"see you at 5",
	}
	if len(history) != len(want) {
		t.Fatalf("history = %+v, want %d messages", history, len(want))
	}
	for i := range want {
		if history[i].Message != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Message, want[i])
		}
	}
	last := history[2]
	if last.FirstName != "Ali" || last.LastName != "Ahmed" {
		t.Errorf("author = %q %q, want Ali Ahmed", last.FirstName, last.LastName)
	}

	live := f.rec.messages(ride.ID)
	if live[len(live)-1] != "see you at 5" {
		t.Errorf("last broadcast = %q", live[len(live)-1])
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture()
	seedUsers(f)
	ctx := context.Background()
	ride := mustCreate(t, f, "host", models.VehicleTypeCar, false)

	if _, err := f.chat.ListMessages(ctx, ride.ID, "host"); err != nil {
		t.Errorf("host ListMessages() error = %v", err)
	}
	if _, err := f.chat.ListMessages(ctx, ride.ID, "b"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("stranger ListMessages() error = %v, want forbidden", err)
	}
	if _, err := f.chat.ListMessages(ctx, "missing", "b"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing ride ListMessages() error = %v, want not found", err)
	}
}

// staleRideRepo runs onRead once, right after handing out a ride snapshot.
type staleRideRepo struct {
	fakeRideRepo
	once   sync.Once
	onRead func()
}

func (r *staleRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	ride, err := r.fakeRideRepo.GetByID(ctx, id)
	r.once.Do(r.onRead)
	return ride, err
}

func TestPostMessageLosesRaceWithCompletion(t *testing.T) {
	f := newFixture()
	seedUsers(f)
	ctx := context.Background()
	ride := mustCreate(t, f, "host", models.VehicleTypeCar, false)
	mustJoin(t, f, ride.ID, "a")

	rideRepo := &staleRideRepo{fakeRideRepo: fakeRideRepo{f.store}}
	rideRepo.onRead = func() {
		if _, err := f.rides.CompleteRide(ctx, ride.ID, "host"); err != nil {
			t.Errorf("CompleteRide() error = %v", err)
		}
	}
	chat := NewChatService(rideRepo, fakeChatRepo{f.store}, NewUserService(fakeUserRepo{f.store}, nil), f.rec)

	err := chat.PostMessage(ctx, ride.ID, "a", "am I late?")
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("PostMessage() error = %v, want invalid state", err)
	}
	if !f.store.ride(ride.ID).IsCompleted {
		t.Fatal("ride not completed")
	}
	if n := f.store.chatCount(ride.ID); n != 0 {
		t.Errorf("completed ride kept %d chat messages", n)
	}
	for _, m := range f.rec.messages(ride.ID) {
		if m == "am I late?" {
			t.Error("rejected message was broadcast")
		}
	}
}

func TestPostMessageToCompletedRide(t *testing.T) {
	f := newFixture()
	seedUsers(f)
	ctx := context.Background()
	ride := mustCreate(t, f, "host", models.VehicleTypeCar, false)
	if _, err := f.rides.CompleteRide(ctx, ride.ID, "host"); err != nil {
		t.Fatal(err)
	}

	if err := f.chat.PostMessage(ctx, ride.ID, "host", "bye"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("PostMessage() error = %v, want invalid state", err)
	}
	if n := f.store.chatCount(ride.ID); n != 0 {
		t.Errorf("chatCount = %d, want 0", n)
	}
}
