package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/events"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/repository"
	"github.com/aditya/rideshare/pkg/utils"
)

const maxRideCodeAttempts = 10

type RideService interface {
	CreateRide(ctx context.Context, hostID string, req *models.CreateRideRequest) (*models.RideResponse, error)
	JoinRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error)
	JoinRideByCode(ctx context.Context, code, userID string) (*models.RideResponse, error)
	LeaveRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error)
	CompleteRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error)
	DeleteRide(ctx context.Context, rideID, userID string) error
	GetRide(ctx context.Context, rideID, viewerID string) (*models.RideResponse, error)
	ListOpenRides(ctx context.Context, viewerID string) ([]*models.RideResponse, error)
	ListCurrentRides(ctx context.Context, viewerID string) ([]*models.RideResponse, error)
	ListRideHistory(ctx context.Context, viewerID string) ([]*models.RideResponse, error)
}

type rideService struct {
	tx       repository.Transactor
	rideRepo repository.RideRepository
	ledger   repository.RideRequestRepository
	chatRepo repository.ChatRepository
	users    UserService
	emitter  *SystemMessageEmitter
	events   events.Publisher
	locks    *keyedMutex
	newCode  func() (string, error)
	now      func() time.Time
}

func NewRideService(
	tx repository.Transactor,
	rideRepo repository.RideRepository,
	ledger repository.RideRequestRepository,
	chatRepo repository.ChatRepository,
	users UserService,
	emitter *SystemMessageEmitter,
	publisher events.Publisher,
) RideService {
	return newRideService(tx, rideRepo, ledger, chatRepo, users, emitter, publisher)
}

func newRideService(
	tx repository.Transactor,
	rideRepo repository.RideRepository,
	ledger repository.RideRequestRepository,
	chatRepo repository.ChatRepository,
	users UserService,
	emitter *SystemMessageEmitter,
	publisher events.Publisher,
) *rideService {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	return &rideService{
		tx:       tx,
		rideRepo: rideRepo,
		ledger:   ledger,
		chatRepo: chatRepo,
		users:    users,
		emitter:  emitter,
		events:   publisher,
		locks:    newKeyedMutex(),
		newCode:  utils.GenerateRideCode,
		now:      time.Now,
	}
}

func (s *rideService) CreateRide(ctx context.Context, hostID string, req *models.CreateRideRequest) (*models.RideResponse, error) {
	if req.DepartureTime.IsZero() {
		return nil, apperrors.Validation("departure_time is required")
	}
	if req.TotalFare == nil || req.IsFemaleOnly == nil {
		return nil, apperrors.Validation("total_fare and is_female_only are required")
	}

	host, err := s.users.GetUser(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if *req.IsFemaleOnly && !host.IsFemale() {
		return nil, apperrors.Conflict("only female hosts can create female-only rides")
	}

	// Two creates by the same host must not both pass the active ride check.
	unlock := s.locks.Lock("host:" + hostID)
	defer unlock()

	ride := &models.Ride{
		HostID:          hostID,
		VehicleType:     req.VehicleType,
		PickupName:      req.Pickup.Name,
		PickupLat:       req.Pickup.Lat,
		PickupLng:       req.Pickup.Lng,
		DestinationName: req.Destination.Name,
		DestinationLat:  req.Destination.Lat,
		DestinationLng:  req.Destination.Lng,
		DepartureTime:   req.DepartureTime,
		TotalFare:       *req.TotalFare,
		SeatsAvailable:  models.InitialSeats(req.VehicleType),
		IsFemaleOnly:    *req.IsFemaleOnly,
	}
	if plate := strings.TrimSpace(req.VehicleNumberPlate); plate != "" {
		ride.VehicleNumberPlate = &plate
	}

	var payload models.ChatPayload
	created := false
	for attempt := 0; attempt < maxRideCodeAttempts && !created; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		exists, err := s.rideRepo.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		ride.RideCode = code

		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			active, err := s.rideRepo.HasActiveRide(ctx, hostID)
			if err != nil {
				return err
			}
			if active {
				return apperrors.HostHasActiveRide()
			}
			if err := s.rideRepo.Create(ctx, ride); err != nil {
				return err
			}
			payload, err = s.emitter.Record(ctx, ride.ID, SystemEvent{
				Kind:        SystemEventCreated,
				Actor:       host,
				Pickup:      ride.PickupName,
				Destination: ride.DestinationName,
			})
			return err
		})
		switch {
		case err == nil:
			created = true
		case repository.IsUniqueViolation(err):
			log.Printf("Ride code %s collided on insert, retrying", code)
			ride.ID = ""
		default:
			return nil, err
		}
	}
	if !created {
		return nil, apperrors.ErrRideCodeExhausted
	}

	s.emitter.Broadcast(ride.ID, payload)
	s.publishEvent(ctx, events.RideCreated, ride.ID, hostID, "")

	return ride.ToResponse(host.ToResponse(), []*models.UserResponse{}), nil
}

func (s *rideService) JoinRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error) {
	return s.join(ctx, rideID, userID)
}

func (s *rideService) JoinRideByCode(ctx context.Context, code, userID string) (*models.RideResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.Validation("ride_code is required")
	}

	ride, err := s.rideRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	return s.join(ctx, ride.ID, userID)
}

func (s *rideService) join(ctx context.Context, rideID, userID string) (*models.RideResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rideID)
	defer unlock()

	var (
		ride    *models.Ride
		members []string
		payload models.ChatPayload
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ride, members, err = s.loadForUpdate(ctx, rideID)
		if err != nil {
			return err
		}

		if ride.IsCompleted {
			return apperrors.RideCompleted()
		}
		if ride.SeatsAvailable <= 0 {
			return apperrors.RideFull()
		}
		if ride.IsHost(userID) || contains(members, userID) {
			return apperrors.AlreadyMember()
		}
		requested, err := s.ledger.Exists(ctx, rideID, userID)
		if err != nil {
			return err
		}
		if requested {
			return apperrors.AlreadyRequested()
		}
		if ride.IsFemaleOnly && !user.IsFemale() {
			return apperrors.Forbidden("this ride is restricted to female riders")
		}

		prev := ride.Snapshot(members)
		if err := s.rideRepo.AddMember(ctx, rideID, userID); err != nil {
			return err
		}
		// Joins are approved on the spot.
		if _, err := s.ledger.RecordJoin(ctx, rideID, userID, true); err != nil {
			return err
		}
		ride.SeatsAvailable--
		members = append(members, userID)

		if _, err := s.applyTransition(ctx, ride, prev, members); err != nil {
			return err
		}
		payload, err = s.emitter.Record(ctx, rideID, SystemEvent{Kind: SystemEventJoined, Actor: user})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Broadcast(rideID, payload)
	s.publishEvent(ctx, events.RideJoined, rideID, userID, "")

	return s.render(ctx, ride, members)
}

// LeaveRide removes the caller from the ride. A departing host hands the
// ride to the earliest approved joiner, or deletes it when nobody else is
// aboard; in that case the returned ride is nil.
func (s *rideService) LeaveRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rideID)
	defer unlock()

	var (
		ride       *models.Ride
		members    []string
		payload    models.ChatPayload
		transition models.RideTransition
		deleted    bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ride, members, err = s.loadForUpdate(ctx, rideID)
		if err != nil {
			return err
		}

		if ride.IsCompleted {
			return apperrors.InvalidState("cannot leave a completed ride")
		}
		isHost := ride.IsHost(userID)
		if !isHost && !contains(members, userID) {
			return apperrors.NotParticipant()
		}

		prev := ride.Snapshot(members)

		if !isHost {
			if err := s.rideRepo.RemoveMember(ctx, rideID, userID); err != nil {
				return err
			}
			ride.SeatsAvailable++
			members = without(members, userID)
			if transition, err = s.applyTransition(ctx, ride, prev, members); err != nil {
				return err
			}
			payload, err = s.emitter.Record(ctx, rideID, SystemEvent{Kind: SystemEventLeft, Actor: user})
			return err
		}

		if len(members) == 0 {
			deleted = true
			return s.purgeRide(ctx, rideID)
		}

		successorID, err := s.ledger.EarliestApprovedJoiner(ctx, rideID)
		if err != nil {
			return err
		}
		if successorID == "" || !contains(members, successorID) {
			log.Printf("Ride %s has %d members but no eligible successor", rideID, len(members))
			return fmt.Errorf("ride %s: %w", rideID, apperrors.ErrNoSuccessor)
		}
		successor, err := s.users.GetUser(ctx, successorID)
		if err != nil {
			return err
		}

		// The successor's member slot and the old host's slot net out to
		// one freed seat.
		if err := s.rideRepo.RemoveMember(ctx, rideID, successorID); err != nil {
			return err
		}
		ride.HostID = successorID
		ride.SeatsAvailable++
		members = without(members, successorID)

		if transition, err = s.applyTransition(ctx, ride, prev, members); err != nil {
			return err
		}
		payload, err = s.emitter.Record(ctx, rideID, SystemEvent{
			Kind:    SystemEventHostChanged,
			Actor:   user,
			NewHost: successor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if deleted {
		s.publishEvent(ctx, events.RideDeleted, rideID, userID, "")
		return nil, nil
	}

	s.emitter.Broadcast(rideID, payload)
	if transition.HostChanged {
		s.publishEvent(ctx, events.RideHostChanged, rideID, userID, transition.NewHost)
	} else {
		s.publishEvent(ctx, events.RideLeft, rideID, userID, "")
	}

	return s.render(ctx, ride, members)
}

func (s *rideService) CompleteRide(ctx context.Context, rideID, userID string) (*models.RideResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rideID)
	defer unlock()

	var (
		ride    *models.Ride
		members []string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ride, members, err = s.loadForUpdate(ctx, rideID)
		if err != nil {
			return err
		}

		if !ride.IsHost(userID) {
			return apperrors.HostOnly("complete")
		}
		if ride.IsCompleted {
			return apperrors.RideCompleted()
		}

		prev := ride.Snapshot(members)
		ride.IsCompleted = true
		_, err = s.applyTransition(ctx, ride, prev, members)
		return err
	})
	if err != nil {
		return nil, err
	}

	// History was purged by the transition; the completion notice is only
	// pushed to whoever is still connected.
	s.emitter.Broadcast(rideID, s.emitter.Payload(SystemEvent{Kind: SystemEventCompleted, Actor: user}))
	s.publishEvent(ctx, events.RideCompleted, rideID, userID, "")

	return s.render(ctx, ride, members)
}

func (s *rideService) DeleteRide(ctx context.Context, rideID, userID string) error {
	unlock := s.locks.Lock(rideID)
	defer unlock()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ride, members, err := s.loadForUpdate(ctx, rideID)
		if err != nil {
			return err
		}

		if ride.IsCompleted {
			return apperrors.InvalidState("cannot delete a completed ride")
		}
		if !ride.IsHost(userID) {
			return apperrors.HostOnly("delete")
		}
		if len(members) > 0 {
			return apperrors.Conflict("cannot delete a ride with members")
		}
		return s.purgeRide(ctx, rideID)
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.RideDeleted, rideID, userID, "")
	return nil
}

func (s *rideService) GetRide(ctx context.Context, rideID, viewerID string) (*models.RideResponse, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	members, err := s.rideRepo.ListMemberIDs(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !ride.IsHost(viewerID) && !contains(members, viewerID) {
		if !ride.IsOpen() {
			return nil, apperrors.Forbidden("you don't have permission to view this ride")
		}
		if ride.IsFemaleOnly {
			viewer, err := s.users.GetUser(ctx, viewerID)
			if err != nil {
				return nil, err
			}
			if !viewer.IsFemale() {
				return nil, apperrors.Forbidden("this ride is restricted to female users")
			}
		}
	}

	return s.render(ctx, ride, members)
}

func (s *rideService) ListOpenRides(ctx context.Context, viewerID string) ([]*models.RideResponse, error) {
	viewer, err := s.users.GetUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	rides, err := s.rideRepo.ListOpen(ctx, viewer.IsFemale())
	if err != nil {
		return nil, err
	}
	return s.renderAll(ctx, rides)
}

func (s *rideService) ListCurrentRides(ctx context.Context, viewerID string) ([]*models.RideResponse, error) {
	rides, err := s.rideRepo.ListActiveByUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.renderAll(ctx, rides)
}

func (s *rideService) ListRideHistory(ctx context.Context, viewerID string) ([]*models.RideResponse, error) {
	rides, err := s.rideRepo.ListCompletedByUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.renderAll(ctx, rides)
}

func (s *rideService) loadForUpdate(ctx context.Context, rideID string) (*models.Ride, []string, error) {
	ride, err := s.rideRepo.GetByIDForUpdate(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}
	if ride == nil {
		return nil, nil, apperrors.NotFound("ride")
	}

	members, err := s.rideRepo.ListMemberIDs(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}
	return ride, members, nil
}

// applyTransition persists the move from prev to the ride's current state
// and carries out what the diff implies.
func (s *rideService) applyTransition(ctx context.Context, ride *models.Ride, prev models.RideState, members []string) (models.RideTransition, error) {
	next := ride.Snapshot(members)
	if !next.Valid(ride.VehicleType) {
		log.Printf("Ride %s seat accounting broken: seats=%d members=%d", ride.ID, next.SeatsAvailable, len(next.Members))
		return models.RideTransition{}, apperrors.InternalError("ride seat accounting is inconsistent")
	}

	t := models.DiffRide(prev, next)

	if err := s.rideRepo.Update(ctx, ride); err != nil {
		return t, err
	}

	// Whoever stops being a member loses their ledger entry, including a
	// member promoted to host.
	for _, id := range t.Left {
		if err := s.ledger.Remove(ctx, ride.ID, id); err != nil {
			return t, err
		}
	}

	if t.Completed {
		n, err := s.chatRepo.DeleteByRide(ctx, ride.ID)
		if err != nil {
			return t, err
		}
		log.Printf("Ride %s completed, purged %d chat messages", ride.ID, n)
	}
	return t, nil
}

// purgeRide deletes the ride and everything it owns.
func (s *rideService) purgeRide(ctx context.Context, rideID string) error {
	if _, err := s.chatRepo.DeleteByRide(ctx, rideID); err != nil {
		return err
	}
	if err := s.ledger.DeleteByRide(ctx, rideID); err != nil {
		return err
	}
	if err := s.rideRepo.DeleteMembers(ctx, rideID); err != nil {
		return err
	}
	return s.rideRepo.Delete(ctx, rideID)
}

func (s *rideService) publishEvent(ctx context.Context, kind, rideID, actorID, newHostID string) {
	s.events.Publish(ctx, events.RideEvent{
		Kind:       kind,
		RideID:     rideID,
		ActorID:    actorID,
		NewHostID:  newHostID,
		OccurredAt: s.now().UTC(),
	})
}

func (s *rideService) render(ctx context.Context, ride *models.Ride, members []string) (*models.RideResponse, error) {
	out, err := s.renderAll(ctx, []*models.Ride{ride}, members)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// renderAll builds responses for rides with one profile lookup. When
// members are given they belong to the single ride passed in.
func (s *rideService) renderAll(ctx context.Context, rides []*models.Ride, known ...[]string) ([]*models.RideResponse, error) {
	memberIDs := make([][]string, len(rides))
	ids := make([]string, 0, len(rides)*3)
	for i, ride := range rides {
		if len(known) > 0 {
			memberIDs[i] = known[0]
		} else {
			members, err := s.rideRepo.ListMemberIDs(ctx, ride.ID)
			if err != nil {
				return nil, err
			}
			memberIDs[i] = members
		}
		ids = append(ids, ride.HostID)
		ids = append(ids, memberIDs[i]...)
	}

	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.RideResponse, 0, len(rides))
	for i, ride := range rides {
		var host *models.UserResponse
		if u, ok := users[ride.HostID]; ok {
			host = u.ToResponse()
		}
		members := make([]*models.UserResponse, 0, len(memberIDs[i]))
		for _, id := range memberIDs[i] {
			if u, ok := users[id]; ok {
				members = append(members, u.ToResponse())
			}
		}
		out = append(out, ride.ToResponse(host, members))
	}
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
