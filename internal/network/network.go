// Package network holds the railway infrastructure of one transit system:
// tracks, platforms, signals, switches and stations.
//
// All elements live in a Network arena and refer to each other by integer
// handles (TrackID, SwitchID, StationID), never by pointer. Handles are chosen
// by the caller and must be positive; the arena indexes them directly.
//
// A Network is built single-threaded. Once simulation starts only occupancy,
// signal aspects, switch routes and failure timers change, and each of those
// is safe for concurrent use.
package network

import (
	"errors"
	"fmt"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

var (
	ErrInvalidID      = errors.New("network: identifiers must be positive")
	ErrDuplicateID    = errors.New("network: duplicate identifier")
	ErrUnknownTrack   = errors.New("network: unknown track")
	ErrUnknownStation = errors.New("network: unknown station")
	ErrUnknownSwitch  = errors.New("network: unknown switch")
)

// Network is the infrastructure arena of one transit system
type Network struct {
	system   transit.System
	tracks   []*Track
	switches []*Switch
	stations []*Station
}

// New creates an empty network for the given system
func New(system transit.System) *Network {
	return &Network{system: system}
}

func (n *Network) System() transit.System { return n.system }

func grow[T any](s []*T, id int) []*T {
	if id < len(s) {
		return s
	}
	return append(s, make([]*T, id+1-len(s))...)
}

// AddTrack creates a plain track. Duration below one tick is raised to one.
func (n *Network) AddTrack(id TrackID, duration int, lines ...transit.TrainLine) (*Track, error) {
	if id <= 0 {
		return nil, fmt.Errorf("track %d: %w", id, ErrInvalidID)
	}
	if n.Track(id) != nil {
		return nil, fmt.Errorf("track %d: %w", id, ErrDuplicateID)
	}
	t := newTrack(id, duration)
	for _, l := range lines {
		t.AddLine(l)
	}
	n.tracks = grow(n.tracks, int(id))
	n.tracks[id] = t
	return t, nil
}

// AddPlatform creates a platform track and registers it with its station
func (n *Network) AddPlatform(id TrackID, duration int, station StationID, dir transit.Direction, lines ...transit.TrainLine) (*Track, error) {
	st := n.Station(station)
	if st == nil {
		return nil, fmt.Errorf("platform %d: station %d: %w", id, station, ErrUnknownStation)
	}
	t, err := n.AddTrack(id, duration, lines...)
	if err != nil {
		return nil, err
	}
	t.platform = &PlatformInfo{Station: station, Direction: dir}
	st.AddPlatform(t)
	return t, nil
}

// AddStation creates a station
func (n *Network) AddStation(id StationID, name string, yard bool, lines ...transit.TrainLine) (*Station, error) {
	if id <= 0 {
		return nil, fmt.Errorf("station %d: %w", id, ErrInvalidID)
	}
	if n.Station(id) != nil {
		return nil, fmt.Errorf("station %d: %w", id, ErrDuplicateID)
	}
	st := &Station{id: id, name: name, yard: yard}
	for _, l := range lines {
		if !st.HasLine(l) {
			st.lines = append(st.lines, l)
		}
	}
	n.stations = grow(n.stations, int(id))
	n.stations[id] = st
	return st, nil
}

// AddSwitch creates a switch with no registered tracks
func (n *Network) AddSwitch(id SwitchID) (*Switch, error) {
	if id <= 0 {
		return nil, fmt.Errorf("switch %d: %w", id, ErrInvalidID)
	}
	if n.Switch(id) != nil {
		return nil, fmt.Errorf("switch %d: %w", id, ErrDuplicateID)
	}
	sw := newSwitch(id)
	n.switches = grow(n.switches, int(id))
	n.switches[id] = sw
	return sw, nil
}

// Track resolves a handle; nil when absent
func (n *Network) Track(id TrackID) *Track {
	if id <= 0 || int(id) >= len(n.tracks) {
		return nil
	}
	return n.tracks[id]
}

// Station resolves a handle; nil when absent
func (n *Network) Station(id StationID) *Station {
	if id <= 0 || int(id) >= len(n.stations) {
		return nil
	}
	return n.stations[id]
}

// Switch resolves a handle; nil when absent
func (n *Network) Switch(id SwitchID) *Switch {
	if id <= 0 || int(id) >= len(n.switches) {
		return nil
	}
	return n.switches[id]
}

func compact[T any](s []*T) []*T {
	out := make([]*T, 0, len(s))
	for _, v := range s {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Tracks returns every track and platform ordered by handle
func (n *Network) Tracks() []*Track { return compact(n.tracks) }

// Stations returns every station ordered by handle
func (n *Network) Stations() []*Station { return compact(n.stations) }

// Switches returns every switch ordered by handle
func (n *Network) Switches() []*Switch { return compact(n.switches) }

// Signals returns the signal of every track ordered by handle
func (n *Network) Signals() []*Signal {
	tracks := n.Tracks()
	out := make([]*Signal, len(tracks))
	for i, t := range tracks {
		out[i] = t.signal
	}
	return out
}

// Yards returns the stations flagged as yards
func (n *Network) Yards() []*Station {
	var out []*Station
	for _, st := range n.Stations() {
		if st.IsYard() {
			out = append(out, st)
		}
	}
	return out
}

// StationsForLine returns the stations that serve the line
func (n *Network) StationsForLine(line transit.TrainLine) []*Station {
	var out []*Station
	for _, st := range n.Stations() {
		if st.HasLine(line) {
			out = append(out, st)
		}
	}
	return out
}

func (n *Network) pair(from, to TrackID) (*Track, *Track, error) {
	a, b := n.Track(from), n.Track(to)
	if a == nil {
		return nil, nil, fmt.Errorf("track %d: %w", from, ErrUnknownTrack)
	}
	if b == nil {
		return nil, nil, fmt.Errorf("track %d: %w", to, ErrUnknownTrack)
	}
	return a, b, nil
}

// AddNextTrack records to as downstream of from. Repeating the call has no effect.
func (n *Network) AddNextTrack(from, to TrackID) error {
	a, _, err := n.pair(from, to)
	if err != nil {
		return err
	}
	a.AddNextTrack(to)
	return nil
}

// AddPrevTrack records prev as upstream of id. Repeating the call has no effect.
func (n *Network) AddPrevTrack(id, prev TrackID) error {
	a, _, err := n.pair(id, prev)
	if err != nil {
		return err
	}
	a.AddPrevTrack(prev)
	return nil
}

// Connect links from → to in both adjacency lists
func (n *Network) Connect(from, to TrackID) error {
	a, b, err := n.pair(from, to)
	if err != nil {
		return err
	}
	a.AddNextTrack(to)
	b.AddPrevTrack(from)
	return nil
}

// Disconnect removes the link from one track to the next. Trains that need it
// wait until it is restored.
func (n *Network) Disconnect(from, to TrackID) error {
	a, b, err := n.pair(from, to)
	if err != nil {
		return err
	}
	a.RemoveNextTrack(to)
	b.RemovePrevTrack(from)
	return nil
}

// AttachSwitch registers approach and departure tracks on a switch and marks
// each approach track's outbound switch and each departure track's inbound switch.
func (n *Network) AttachSwitch(id SwitchID, approach, departure []TrackID) error {
	sw := n.Switch(id)
	if sw == nil {
		return fmt.Errorf("switch %d: %w", id, ErrUnknownSwitch)
	}
	for _, tid := range approach {
		t := n.Track(tid)
		if t == nil {
			return fmt.Errorf("switch %d approach %d: %w", id, tid, ErrUnknownTrack)
		}
		sw.AddApproachTrack(tid)
		t.SetOutboundSwitch(id)
	}
	for _, tid := range departure {
		t := n.Track(tid)
		if t == nil {
			return fmt.Errorf("switch %d departure %d: %w", id, tid, ErrUnknownTrack)
		}
		sw.AddDepartureTrack(tid)
		t.SetInboundSwitch(id)
	}
	return nil
}

// DetachSwitch undoes AttachSwitch for the given tracks
func (n *Network) DetachSwitch(id SwitchID, approach, departure []TrackID) error {
	sw := n.Switch(id)
	if sw == nil {
		return fmt.Errorf("switch %d: %w", id, ErrUnknownSwitch)
	}
	for _, tid := range approach {
		sw.RemoveApproachTrack(tid)
		if t := n.Track(tid); t != nil && t.OutboundSwitch() == id {
			t.SetOutboundSwitch(NoSwitch)
		}
	}
	for _, tid := range departure {
		sw.RemoveDepartureTrack(tid)
		if t := n.Track(tid); t != nil && t.InboundSwitch() == id {
			t.SetInboundSwitch(NoSwitch)
		}
	}
	return nil
}

func (n *Network) firstSupporting(ids []TrackID, line transit.TrainLine) TrackID {
	for _, id := range ids {
		if t := n.Track(id); t != nil && t.SupportsLine(line) {
			return id
		}
	}
	return NoTrack
}

// NextTrack returns the first downstream neighbour that serves the line, or NoTrack
func (n *Network) NextTrack(from TrackID, line transit.TrainLine) TrackID {
	t := n.Track(from)
	if t == nil {
		return NoTrack
	}
	return n.firstSupporting(t.next, line)
}

// PrevTrack returns the first upstream neighbour that serves the line, or NoTrack
func (n *Network) PrevTrack(from TrackID, line transit.TrainLine) TrackID {
	t := n.Track(from)
	if t == nil {
		return NoTrack
	}
	return n.firstSupporting(t.prev, line)
}

// ProtectingSwitch returns the switch a train must cross to move from → to, if any.
// The destination's inbound switch takes precedence over the origin's outbound one.
func (n *Network) ProtectingSwitch(from, to TrackID) SwitchID {
	if t := n.Track(to); t != nil && t.inbound != NoSwitch {
		return t.inbound
	}
	if t := n.Track(from); t != nil && t.outbound != NoSwitch {
		return t.outbound
	}
	return NoSwitch
}
