package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aditya/rideshare/internal/events"
	"github.com/aditya/rideshare/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// memStore backs every fake repository so they share one consistent view.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	rides    map[string]*models.Ride
	members  map[string][]string
	requests map[string][]*models.RideRequest
	chat     map[string][]*models.ChatMessage
	tick     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*models.User),
		rides:    make(map[string]*models.Ride),
		members:  make(map[string][]string),
		requests: make(map[string][]*models.RideRequest),
		chat:     make(map[string][]*models.ChatMessage),
		tick:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// next returns strictly increasing timestamps so ordering never ties.
func (m *memStore) next() time.Time {
	m.tick = m.tick.Add(time.Second)
	return m.tick
}

func (m *memStore) addUser(id, first, last, gender string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: id, Email: id + "@example.com", FirstName: first, LastName: last}
	if gender != "" {
		g := gender
		u.Gender = &g
	}
	m.users[id] = u
	return u
}

func (m *memStore) chatCount(rideID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chat[rideID])
}

func (m *memStore) requestCount(rideID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests[rideID])
}

func (m *memStore) hasRequest(rideID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests[rideID] {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (m *memStore) ride(id string) *models.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *memStore) memberIDs(rideID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.members[rideID]...)
}

type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = user
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeRideRepo struct{ s *memStore }

func (r fakeRideRepo) Create(_ context.Context, ride *models.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rides {
		if existing.RideCode == ride.RideCode {
			return &pq.Error{Code: "23505", Message: "duplicate ride_code"}
		}
	}
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	ride.CreatedAt = r.s.next()
	cp := *ride
	r.s.rides[ride.ID] = &cp
	return nil
}

func (r fakeRideRepo) get(id string) *models.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return nil
	}
	cp := *ride
	return &cp
}

func (r fakeRideRepo) GetByID(_ context.Context, id string) (*models.Ride, error) {
	return r.get(id), nil
}

func (r fakeRideRepo) GetByIDForUpdate(_ context.Context, id string) (*models.Ride, error) {
	return r.get(id), nil
}

func (r fakeRideRepo) GetByCode(_ context.Context, code string) (*models.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ride := range r.s.rides {
		if ride.RideCode == code {
			cp := *ride
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeRideRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	ride, _ := r.GetByCode(ctx, code)
	return ride != nil, nil
}

func (r fakeRideRepo) Update(_ context.Context, ride *models.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rides[ride.ID]
	if !ok {
		return nil
	}
	stored.HostID = ride.HostID
	stored.SeatsAvailable = ride.SeatsAvailable
	stored.IsCompleted = ride.IsCompleted
	return nil
}

func (r fakeRideRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.rides, id)
	return nil
}

func (r fakeRideRepo) filter(keep func(*models.Ride) bool) []*models.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.s.rides {
		if keep(ride) {
			cp := *ride
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r fakeRideRepo) participates(ride *models.Ride, userID string) bool {
	if ride.HostID == userID {
		return true
	}
	for _, id := range r.s.members[ride.ID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (r fakeRideRepo) ListOpen(_ context.Context, includeFemaleOnly bool) ([]*models.Ride, error) {
	return r.filter(func(ride *models.Ride) bool {
		return ride.IsOpen() && (includeFemaleOnly || !ride.IsFemaleOnly)
	}), nil
}

func (r fakeRideRepo) ListActiveByUser(_ context.Context, userID string) ([]*models.Ride, error) {
	return r.filter(func(ride *models.Ride) bool {
		return !ride.IsCompleted && r.participates(ride, userID)
	}), nil
}

func (r fakeRideRepo) ListCompletedByUser(_ context.Context, userID string) ([]*models.Ride, error) {
	return r.filter(func(ride *models.Ride) bool {
		return ride.IsCompleted && r.participates(ride, userID)
	}), nil
}

func (r fakeRideRepo) HasActiveRide(ctx context.Context, userID string) (bool, error) {
	rides, _ := r.ListActiveByUser(ctx, userID)
	return len(rides) > 0, nil
}

func (r fakeRideRepo) ListMemberIDs(_ context.Context, rideID string) ([]string, error) {
	return r.s.memberIDs(rideID), nil
}

func (r fakeRideRepo) AddMember(_ context.Context, rideID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.members[rideID] = append(r.s.members[rideID], userID)
	return nil
}

func (r fakeRideRepo) RemoveMember(_ context.Context, rideID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.members[rideID] = without(r.s.members[rideID], userID)
	return nil
}

func (r fakeRideRepo) DeleteMembers(_ context.Context, rideID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.members, rideID)
	return nil
}

type fakeLedger struct{ s *memStore }

func (l fakeLedger) RecordJoin(_ context.Context, rideID, userID string, approved bool) (*models.RideRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	req := &models.RideRequest{
		ID:          uuid.New().String(),
		RideID:      rideID,
		UserID:      userID,
		RequestedAt: l.s.next(),
		IsApproved:  approved,
	}
	l.s.requests[rideID] = append(l.s.requests[rideID], req)
	return req, nil
}

func (l fakeLedger) Exists(_ context.Context, rideID, userID string) (bool, error) {
	return l.s.hasRequest(rideID, userID), nil
}

func (l fakeLedger) EarliestApprovedJoiner(_ context.Context, rideID string) (string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var best *models.RideRequest
	for _, r := range l.s.requests[rideID] {
		if !r.IsApproved {
			continue
		}
		if best == nil || r.RequestedAt.Before(best.RequestedAt) {
			best = r
		}
	}
	if best == nil {
		return "", nil
	}
	return best.UserID, nil
}

func (l fakeLedger) Remove(_ context.Context, rideID, userID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	kept := l.s.requests[rideID][:0]
	for _, r := range l.s.requests[rideID] {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	l.s.requests[rideID] = kept
	return nil
}

func (l fakeLedger) DeleteByRide(_ context.Context, rideID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	delete(l.s.requests, rideID)
	return nil
}

type fakeChatRepo struct{ s *memStore }

func (c fakeChatRepo) Create(_ context.Context, msg *models.ChatMessage) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	cp := *msg
	c.s.chat[msg.RideID] = append(c.s.chat[msg.RideID], &cp)
	return nil
}

func (c fakeChatRepo) CreateIfRideOpen(_ context.Context, msg *models.ChatMessage) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	ride, ok := c.s.rides[msg.RideID]
	if !ok || ride.IsCompleted {
		return false, nil
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	cp := *msg
	c.s.chat[msg.RideID] = append(c.s.chat[msg.RideID], &cp)
	return true, nil
}

func (c fakeChatRepo) ListByRide(_ context.Context, rideID string) ([]*models.ChatMessage, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return append([]*models.ChatMessage(nil), c.s.chat[rideID]...), nil
}

func (c fakeChatRepo) DeleteByRide(_ context.Context, rideID string) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	n := int64(len(c.s.chat[rideID]))
	delete(c.s.chat, rideID)
	return n, nil
}

// recorder captures both chat broadcasts and domain events.
type recorder struct {
	mu        sync.Mutex
	published map[string][]models.ChatPayload
	events    []events.RideEvent
}

func newRecorder() *recorder {
	return &recorder{published: make(map[string][]models.ChatPayload)}
}

func (r *recorder) Publish(rideID string, payload models.ChatPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[rideID] = append(r.published[rideID], payload)
}

func (r *recorder) messages(rideID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.published[rideID] {
		out = append(out, p.Message)
	}
	return out
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type eventRecorder struct{ r *recorder }

func (e eventRecorder) Publish(_ context.Context, event events.RideEvent) {
	e.r.mu.Lock()
	defer e.r.mu.Unlock()
	e.r.events = append(e.r.events, event)
}

func (e eventRecorder) Close() error { return nil }

type fixture struct {
	store *memStore
	rides *rideService
	chat  ChatService
	rec   *recorder
}

func newFixture() *fixture {
	store := newMemStore()
	rec := newRecorder()
	users := NewUserService(fakeUserRepo{store}, nil)
	chatRepo := fakeChatRepo{store}
	rideRepo := fakeRideRepo{store}
	emitter := NewSystemMessageEmitter(chatRepo, rec)

	return &fixture{
		store: store,
		rides: newRideService(fakeTransactor{}, rideRepo, fakeLedger{store}, chatRepo, users, emitter, eventRecorder{rec}),
		chat:  NewChatService(rideRepo, chatRepo, users, rec),
		rec:   rec,
	}
}
