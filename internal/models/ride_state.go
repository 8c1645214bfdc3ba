package models

// RideState is the mutable part of a ride aggregate: who hosts it, who
// rides in it and whether it is finished.
type RideState struct {
	HostID         string
	Members        []string
	SeatsAvailable int
	IsCompleted    bool
}

// Snapshot captures the aggregate state of r with the given members.
func (r *Ride) Snapshot(members []string) RideState {
	cp := make([]string, len(members))
	copy(cp, members)
	return RideState{
		HostID:         r.HostID,
		Members:        cp,
		SeatsAvailable: r.SeatsAvailable,
		IsCompleted:    r.IsCompleted,
	}
}

// RideTransition describes what changed between two ride states.
type RideTransition struct {
	Completed    bool
	HostChanged  bool
	PreviousHost string
	NewHost      string
	Joined       []string
	Left         []string
}

// DiffRide computes the transition from prev to next. Side effects of a
// lifecycle step are derived from this diff rather than from re-reading
// stored rows.
func DiffRide(prev, next RideState) RideTransition {
	t := RideTransition{
		Completed:    !prev.IsCompleted && next.IsCompleted,
		HostChanged:  prev.HostID != next.HostID,
		PreviousHost: prev.HostID,
		NewHost:      next.HostID,
	}

	before := make(map[string]struct{}, len(prev.Members))
	for _, id := range prev.Members {
		before[id] = struct{}{}
	}
	after := make(map[string]struct{}, len(next.Members))
	for _, id := range next.Members {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			t.Joined = append(t.Joined, id)
		}
	}
	for _, id := range prev.Members {
		if _, ok := after[id]; !ok {
			t.Left = append(t.Left, id)
		}
	}
	return t
}

// Valid reports whether the seat invariant holds for a vehicle type:
// seats + members + host == capacity, seats never negative, host not a member.
func (s RideState) Valid(vehicleType string) bool {
	if s.SeatsAvailable < 0 {
		return false
	}
	for _, id := range s.Members {
		if id == s.HostID {
			return false
		}
	}
	return s.SeatsAvailable+len(s.Members)+1 == MaxSeats(vehicleType)
}
