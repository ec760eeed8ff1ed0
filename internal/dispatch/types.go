package dispatch

import (
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/train"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Defaults for failure and delay injection
const (
	PlatformDelayProbability = 0.3
	SignalFailureProbability = 0.05
	SwitchFailureProbability = 0.02
	MaxDelay                 = 4
)

// Params tunes failure and delay injection
type Params struct {
	PlatformDelayProbability float64
	SignalFailureProbability float64
	MaxDelay                 int
}

// DefaultParams returns the standard injection rates
func DefaultParams() Params {
	return Params{
		PlatformDelayProbability: PlatformDelayProbability,
		SignalFailureProbability: SignalFailureProbability,
		MaxDelay:                 MaxDelay,
	}
}

// Move is an authorized (train, destination) pair for the current tick
type Move struct {
	Train *train.Train
	To    network.TrackID
}

// SwitchRequest asks the arbiter to route a switch for a train
type SwitchRequest struct {
	Train       *train.Train
	Switch      network.SwitchID
	From        network.TrackID
	To          network.TrackID
	Priority    int
	RequestTick int
	Dispatch    *Dispatch
}

// Grant is a switch route awarded to a train for this tick
type Grant struct {
	Train *train.Train
	To    network.TrackID
}

// SwitchArbiter resolves switch contention between dispatchers
type SwitchArbiter interface {
	RequestSwitch(req SwitchRequest)
	GrantedLinks(d *Dispatch) []Grant
}

// MovementKind classifies a recorded movement or incident
type MovementKind string

const (
	KindSpawn          MovementKind = "spawn"
	KindDespawn        MovementKind = "despawn"
	KindArrival        MovementKind = "arrival"
	KindDeparture      MovementKind = "departure"
	KindPlatformDelay  MovementKind = "platform_delay"
	KindSignalFailure  MovementKind = "signal_failure"
	KindSignalRestored MovementKind = "signal_restored"
	KindSwitchFailure  MovementKind = "switch_failure"
	KindSwitchRestored MovementKind = "switch_restored"
)

// Movement is one observable simulation event, fed to a Recorder.
// PlannedTick is schedule.NotApplicable when nothing was scheduled.
type Movement struct {
	Tick        int
	System      transit.System
	Line        transit.TrainLine
	Kind        MovementKind
	Train       network.TrainID
	Station     network.StationID
	StationName string
	Track       network.TrackID
	Switch      network.SwitchID
	PlannedTick int
	Lateness    int
	Scheduled   bool
	Ticks       int
}

// Recorder receives movements as they happen. Implementations must not block
// the tick for long; they are called from the simulation goroutine.
type Recorder interface {
	Record(m Movement)
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(Movement)

func (f RecorderFunc) Record(m Movement) { f(m) }

type nopRecorder struct{}

func (nopRecorder) Record(Movement) {}
