package network

import (
	"slices"
	"sync"
)

// SwitchID addresses a switch in a Network. Zero means "no switch".
type SwitchID int32

// NoSwitch is the absent switch handle
const NoSwitch SwitchID = 0

// Switch connects approach tracks to departure tracks. At most one route
// (from, to) is set at a time.
type Switch struct {
	id SwitchID

	mu        sync.Mutex
	approach  []TrackID
	departure []TrackID
	from      TrackID
	to        TrackID
	timer     int
}

func newSwitch(id SwitchID) *Switch {
	return &Switch{id: id}
}

func (s *Switch) ID() SwitchID { return s.id }

// ApproachTracks returns the tracks that feed into the switch
func (s *Switch) ApproachTracks() []TrackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.approach)
}

// DepartureTracks returns the tracks the switch can route onto
func (s *Switch) DepartureTracks() []TrackID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.departure)
}

func (s *Switch) AddApproachTrack(id TrackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != NoTrack && !slices.Contains(s.approach, id) {
		s.approach = append(s.approach, id)
	}
}

func (s *Switch) AddDepartureTrack(id TrackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != NoTrack && !slices.Contains(s.departure, id) {
		s.departure = append(s.departure, id)
	}
}

// RemoveApproachTrack unregisters an approach track and drops any route through it
func (s *Switch) RemoveApproachTrack(id TrackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approach = slices.DeleteFunc(s.approach, func(t TrackID) bool { return t == id })
	if s.from == id {
		s.from, s.to = NoTrack, NoTrack
	}
}

// RemoveDepartureTrack unregisters a departure track and drops any route onto it
func (s *Switch) RemoveDepartureTrack(id TrackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departure = slices.DeleteFunc(s.departure, func(t TrackID) bool { return t == id })
	if s.to == id {
		s.from, s.to = NoTrack, NoTrack
	}
}

// SetLink routes the switch from an approach track to a departure track,
// replacing any previous route. It fails when the switch is out of service or
// either endpoint is not registered.
func (s *Switch) SetLink(from, to TrackID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer > 0 {
		return false
	}
	if !slices.Contains(s.approach, from) || !slices.Contains(s.departure, to) {
		return false
	}
	s.from, s.to = from, to
	return true
}

// Link returns the departure track currently routed from the given approach track
func (s *Switch) Link(from TrackID) (TrackID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.from == NoTrack || s.from != from {
		return NoTrack, false
	}
	return s.to, true
}

// ActiveLink returns the current route, if any
func (s *Switch) ActiveLink() (from, to TrackID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.from, s.to, s.from != NoTrack
}

func (s *Switch) ClearLink() {
	s.mu.Lock()
	s.from, s.to = NoTrack, NoTrack
	s.mu.Unlock()
}

// SetFailure takes the switch out of service for the given number of ticks.
// Non-positive durations are ignored.
func (s *Switch) SetFailure(ticks int) {
	if ticks <= 0 {
		return
	}
	s.mu.Lock()
	s.timer = ticks
	s.mu.Unlock()
}

// UpdateRepair advances the repair countdown by one tick.
// Returns true when this call brought the switch back into service.
func (s *Switch) UpdateRepair() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == 0 {
		return false
	}
	s.timer--
	return s.timer == 0
}

func (s *Switch) IsFunctional() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer == 0
}

func (s *Switch) FailureTimer() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer
}
