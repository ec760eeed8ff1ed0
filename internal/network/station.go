package network

import (
	"slices"
	"sync"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// StationID addresses a station in a Network. Zero means "no station".
type StationID int32

// NoStation is the absent station handle
const NoStation StationID = 0

// Station groups the platforms of one stop. Yards are stations where trains
// enter and leave service.
type Station struct {
	id    StationID
	name  string
	yard  bool
	lines []transit.TrainLine

	mu        sync.RWMutex
	platforms []*Track
}

func (s *Station) ID() StationID { return s.id }
func (s *Station) Name() string  { return s.name }
func (s *Station) IsYard() bool  { return s.yard }

func (s *Station) Lines() []transit.TrainLine { return slices.Clone(s.lines) }

func (s *Station) HasLine(line transit.TrainLine) bool {
	return slices.Contains(s.lines, line)
}

// AddPlatform registers a platform track; duplicates are ignored
func (s *Station) AddPlatform(p *Track) {
	if p == nil || !p.IsPlatform() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.platforms, p) {
		s.platforms = append(s.platforms, p)
	}
}

// Platforms returns a snapshot of the station's platforms
func (s *Station) Platforms() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.platforms)
}

// PlatformsByDirection returns the platforms serving trains heading in dir
func (s *Station) PlatformsByDirection(dir transit.Direction) []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Track
	for _, p := range s.platforms {
		if p.Direction() == dir {
			out = append(out, p)
		}
	}
	return out
}

// FindAvailablePlatform returns the first unoccupied platform for the direction
func (s *Station) FindAvailablePlatform(dir transit.Direction) (*Track, bool) {
	for _, p := range s.PlatformsByDirection(dir) {
		if !p.IsOccupied() {
			return p, true
		}
	}
	return nil, false
}

// SelectPlatform returns the first platform for the direction that serves the line
func (s *Station) SelectPlatform(dir transit.Direction, line transit.TrainLine) (*Track, bool) {
	for _, p := range s.PlatformsByDirection(dir) {
		if p.SupportsLine(line) {
			return p, true
		}
	}
	return nil, false
}
