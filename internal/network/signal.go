package network

import (
	"sync"
	"sync/atomic"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Signal guards entry to a single track. Its aspect is stored atomically so that
// readers never observe a torn value; the failure timer has its own lock.
type Signal struct {
	id     TrackID
	state  atomic.Int32
	failMu sync.Mutex
	timer  int
}

func newSignal(target TrackID) *Signal {
	s := &Signal{id: target}
	s.state.Store(int32(transit.Red))
	return s
}

// ID returns the signal number, which is shared with the track it protects
func (s *Signal) ID() int { return int(s.id) }

// Target returns the protected track
func (s *Signal) Target() TrackID { return s.id }

// State returns the current aspect
func (s *Signal) State() transit.SignalState {
	return transit.SignalState(s.state.Load())
}

func (s *Signal) IsRed() bool    { return s.State() == transit.Red }
func (s *Signal) IsYellow() bool { return s.State() == transit.Yellow }
func (s *Signal) IsGreen() bool  { return s.State() == transit.Green }

// ChangeState sets the aspect and reports whether it differed from the previous one
func (s *Signal) ChangeState(next transit.SignalState) bool {
	return transit.SignalState(s.state.Swap(int32(next))) != next
}

// SetFailure takes the signal out of service for the given number of ticks.
// Non-positive durations are ignored.
func (s *Signal) SetFailure(ticks int) {
	if ticks <= 0 {
		return
	}
	s.failMu.Lock()
	s.timer = ticks
	s.failMu.Unlock()
}

// UpdateRepair advances the repair countdown by one tick.
// Returns true when this call brought the signal back into service.
func (s *Signal) UpdateRepair() bool {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.timer == 0 {
		return false
	}
	s.timer--
	return s.timer == 0
}

// IsFunctional reports whether the signal is in service
func (s *Signal) IsFunctional() bool {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.timer == 0
}

// FailureTimer returns the remaining repair ticks
func (s *Signal) FailureTimer() int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.timer
}
