// Package train models a single train run moving across a network.
package train

import (
	"slices"

	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Train is a scheduled run of one line. It is driven by exactly one dispatcher
// and is not safe for concurrent mutation; track occupancy, which other lines
// can observe, lives on the tracks themselves.
type Train struct {
	id       network.TrainID
	headsign string
	line     transit.TrainLine
	service  transit.ServiceType
	net      *network.Network

	status    transit.TrainStatus
	direction transit.Direction
	current   network.TrackID
	previous  network.TrackID
	dwell     int

	lateness    int
	hasLateness bool

	route []network.StationID
}

// New creates an idle train that is not yet on any track
func New(net *network.Network, id network.TrainID, line transit.TrainLine, service transit.ServiceType, headsign string, dir transit.Direction) *Train {
	return &Train{
		id:        id,
		headsign:  headsign,
		line:      line,
		service:   service,
		net:       net,
		direction: dir,
		status:    transit.Idle,
	}
}

func (t *Train) ID() network.TrainID              { return t.id }
func (t *Train) Headsign() string                 { return t.headsign }
func (t *Train) Line() transit.TrainLine          { return t.line }
func (t *Train) ServiceType() transit.ServiceType { return t.service }
func (t *Train) Status() transit.TrainStatus      { return t.status }
func (t *Train) Direction() transit.Direction     { return t.direction }
func (t *Train) Dwell() int                       { return t.dwell }

// CurrentTrack returns the track the train occupies, or NoTrack
func (t *Train) CurrentTrack() network.TrackID { return t.current }

// PreviousTrack returns the track the train left on its last move, or NoTrack
func (t *Train) PreviousTrack() network.TrackID { return t.previous }

// IsActive reports whether the train is in service on the network
func (t *Train) IsActive() bool {
	return t.status != transit.Idle && t.status != transit.OutOfService
}

// RequestMovement counts down the dwell timer. It returns true once the
// train is free to attempt a move.
func (t *Train) RequestMovement() bool {
	if t.dwell > 0 {
		t.dwell--
		return false
	}
	return true
}

// AddDwell holds the train for extra ticks; non-positive values are ignored
func (t *Train) AddDwell(extra int) {
	if extra > 0 {
		t.dwell += extra
	}
}

// SetLateness records how many ticks behind (positive) or ahead of schedule the train is
func (t *Train) SetLateness(delta int) {
	t.lateness = delta
	t.hasLateness = true
}

// Lateness returns the lateness observed at the last matched schedule event
func (t *Train) Lateness() int { return t.lateness }

// HasLateness reports whether any schedule event has been matched yet
func (t *Train) HasLateness() bool { return t.hasLateness }

// SetRoute replaces the queue of stations still to be served
func (t *Train) SetRoute(stations []network.StationID) {
	t.route = slices.Clone(stations)
}

func (t *Train) Route() []network.StationID { return slices.Clone(t.route) }

// NextDestination returns the next station on the route
func (t *Train) NextDestination() (network.StationID, bool) {
	if len(t.route) == 0 {
		return network.NoStation, false
	}
	return t.route[0], true
}

// MoveToTrack moves the train onto the given track. The move succeeds only if
// the destination admits the train (free and showing green); the previous
// track is released afterwards.
func (t *Train) MoveToTrack(to network.TrackID) bool {
	if to == network.NoTrack || !t.IsActive() {
		return false
	}
	dest := t.net.Track(to)
	if dest == nil || !dest.TryEntry(t.id) {
		return false
	}

	leavingPlatform := false
	if cur := t.net.Track(t.current); cur != nil {
		leavingPlatform = cur.IsPlatform()
		cur.ReleaseIf(t.id)
	}
	t.previous, t.current = t.current, to

	switch {
	case dest.IsPlatform():
		t.status = transit.Arriving
		if next, ok := t.NextDestination(); ok && next == dest.Station() {
			t.route = t.route[1:]
		}
	case leavingPlatform:
		t.status = transit.Departing
	default:
		t.status = transit.Moving
	}
	t.dwell = max(dest.Duration()-1, 0)
	return true
}

// Spawn places an idle train on a yard platform. The platform must admit it.
func (t *Train) Spawn(platform network.TrackID) bool {
	if t.status != transit.Idle {
		return false
	}
	p := t.net.Track(platform)
	if p == nil || !p.IsPlatform() || !p.TryEntry(t.id) {
		return false
	}
	t.current, t.previous = platform, network.NoTrack
	t.direction = p.Direction()
	t.status = transit.Ready
	t.dwell = 0
	return true
}

// Despawn takes the train out of service and frees its track. The train is
// inert afterwards.
func (t *Train) Despawn() {
	if cur := t.net.Track(t.current); cur != nil {
		cur.ReleaseIf(t.id)
	}
	t.previous, t.current = t.current, network.NoTrack
	t.status = transit.OutOfService
	t.dwell = 0
}
