package network

import (
	"slices"
	"sync/atomic"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// TrackID addresses a track (or platform) in a Network. Zero means "no track".
type TrackID int32

// NoTrack is the absent track handle
const NoTrack TrackID = 0

// TrainID identifies a train. Zero means "no train".
type TrainID int64

// NoTrain is the absent train handle
const NoTrain TrainID = 0

// PlatformInfo marks a track as a station platform
type PlatformInfo struct {
	Station   StationID
	Direction transit.Direction
}

// Track is a unit of railway that holds at most one train.
//
// Adjacency, lines and switch attachments are written while the network is
// being built and are read-only afterwards. Occupancy is the only field that
// changes during simulation and is updated with compare-and-swap.
type Track struct {
	id       TrackID
	duration int
	occupant atomic.Int64
	signal   *Signal

	lines []transit.TrainLine
	next  []TrackID
	prev  []TrackID

	outbound SwitchID
	inbound  SwitchID

	platform *PlatformInfo
}

func newTrack(id TrackID, duration int) *Track {
	if duration < 1 {
		duration = 1
	}
	return &Track{
		id:       id,
		duration: duration,
		signal:   newSignal(id),
	}
}

func (t *Track) ID() TrackID { return t.id }

// Duration is the number of ticks a train spends on the track
func (t *Track) Duration() int { return t.duration }

// Signal returns the signal protecting entry to this track
func (t *Track) Signal() *Signal { return t.signal }

// TryEntry admits the train if the track is free and its signal shows green.
// Of several concurrent callers at most one succeeds.
func (t *Track) TryEntry(train TrainID) bool {
	if train == NoTrain || !t.signal.IsGreen() {
		return false
	}
	return t.occupant.CompareAndSwap(int64(NoTrain), int64(train))
}

// ReleaseTrain frees the track. Releasing a free track is a no-op.
func (t *Track) ReleaseTrain() {
	t.occupant.Store(int64(NoTrain))
}

// ReleaseIf frees the track only when the given train holds it
func (t *Track) ReleaseIf(train TrainID) bool {
	return t.occupant.CompareAndSwap(int64(train), int64(NoTrain))
}

// OccupyingTrain returns the train on the track, if any
func (t *Track) OccupyingTrain() (TrainID, bool) {
	id := TrainID(t.occupant.Load())
	return id, id != NoTrain
}

func (t *Track) IsOccupied() bool {
	return t.occupant.Load() != int64(NoTrain)
}

// Lines returns the train lines allowed on the track
func (t *Track) Lines() []transit.TrainLine {
	return slices.Clone(t.lines)
}

// SupportsLine reports whether trains of the line may use the track
func (t *Track) SupportsLine(line transit.TrainLine) bool {
	return slices.Contains(t.lines, line)
}

// AddLine registers a line on the track; duplicates are ignored
func (t *Track) AddLine(line transit.TrainLine) {
	if !t.SupportsLine(line) {
		t.lines = append(t.lines, line)
	}
}

// NextTracks returns the downstream neighbours in insertion order
func (t *Track) NextTracks() []TrackID { return slices.Clone(t.next) }

// PrevTracks returns the upstream neighbours in insertion order
func (t *Track) PrevTracks() []TrackID { return slices.Clone(t.prev) }

// AddNextTrack appends a downstream neighbour; duplicates and self-loops are ignored
func (t *Track) AddNextTrack(id TrackID) {
	if id == NoTrack || id == t.id || slices.Contains(t.next, id) {
		return
	}
	t.next = append(t.next, id)
}

// AddPrevTrack appends an upstream neighbour; duplicates and self-loops are ignored
func (t *Track) AddPrevTrack(id TrackID) {
	if id == NoTrack || id == t.id || slices.Contains(t.prev, id) {
		return
	}
	t.prev = append(t.prev, id)
}

// RemoveNextTrack drops a downstream neighbour
func (t *Track) RemoveNextTrack(id TrackID) {
	t.next = slices.DeleteFunc(t.next, func(n TrackID) bool { return n == id })
}

// RemovePrevTrack drops an upstream neighbour
func (t *Track) RemovePrevTrack(id TrackID) {
	t.prev = slices.DeleteFunc(t.prev, func(n TrackID) bool { return n == id })
}

// OutboundSwitch is the switch a train crosses when leaving this track
func (t *Track) OutboundSwitch() SwitchID { return t.outbound }

// InboundSwitch is the switch a train crosses when entering this track
func (t *Track) InboundSwitch() SwitchID { return t.inbound }

func (t *Track) SetOutboundSwitch(id SwitchID) { t.outbound = id }
func (t *Track) SetInboundSwitch(id SwitchID)  { t.inbound = id }

// IsPlatform reports whether the track is a station platform
func (t *Track) IsPlatform() bool { return t.platform != nil }

// Platform returns the platform attributes of the track
func (t *Track) Platform() (PlatformInfo, bool) {
	if t.platform == nil {
		return PlatformInfo{}, false
	}
	return *t.platform, true
}

// Station returns the owning station of a platform, or NoStation for plain track
func (t *Track) Station() StationID {
	if t.platform == nil {
		return NoStation
	}
	return t.platform.Station
}

// Direction returns the direction served by a platform
func (t *Track) Direction() transit.Direction {
	if t.platform == nil {
		return transit.NoDirection
	}
	return t.platform.Direction
}
