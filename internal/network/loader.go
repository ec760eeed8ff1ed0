package network

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Layout is the on-disk description of a network produced by the graph
// construction step. Trains are listed here because they are created together
// with the infrastructure they start on.
type Layout struct {
	System   transit.System  `json:"system"`
	Stations []StationLayout `json:"stations"`
	Tracks   []TrackLayout   `json:"tracks"`
	Links    [][2]TrackID    `json:"links"`
	Switches []SwitchLayout  `json:"switches"`
	Trains   []TrainLayout   `json:"trains"`
}

type StationLayout struct {
	ID    StationID `json:"id"`
	Name  string    `json:"name"`
	Yard  bool      `json:"yard"`
	Lines []string  `json:"lines"`
}

type TrackLayout struct {
	ID       TrackID         `json:"id"`
	Duration int             `json:"duration"`
	Lines    []string        `json:"lines"`
	Platform *PlatformLayout `json:"platform,omitempty"`
}

type PlatformLayout struct {
	Station   StationID         `json:"station"`
	Direction transit.Direction `json:"direction"`
}

type SwitchLayout struct {
	ID        SwitchID  `json:"id"`
	Approach  []TrackID `json:"approach"`
	Departure []TrackID `json:"departure"`
}

type TrainLayout struct {
	ID        TrainID           `json:"id"`
	Line      string            `json:"line"`
	Service   string            `json:"service"`
	Headsign  string            `json:"headsign"`
	Direction transit.Direction `json:"direction"`
}

// LoadFile reads a layout file and builds its network
func LoadFile(path string) (*Network, *Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open network layout: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a JSON layout and builds its network
func Load(r io.Reader) (*Network, *Layout, error) {
	var l Layout
	if err := json.NewDecoder(r).Decode(&l); err != nil {
		return nil, nil, fmt.Errorf("failed to decode network layout: %w", err)
	}
	n, err := l.Build()
	if err != nil {
		return nil, nil, err
	}
	return n, &l, nil
}

func parseLines(system transit.System, names []string) ([]transit.TrainLine, error) {
	out := make([]transit.TrainLine, 0, len(names))
	for _, name := range names {
		line, err := transit.ParseLine(system, name)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// Build constructs the network described by the layout. Stations are created
// before tracks so platforms can register with them.
func (l *Layout) Build() (*Network, error) {
	if l.System == 0 {
		return nil, fmt.Errorf("network layout has no system")
	}
	n := New(l.System)

	for _, s := range l.Stations {
		lines, err := parseLines(l.System, s.Lines)
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", s.ID, err)
		}
		if _, err := n.AddStation(s.ID, s.Name, s.Yard, lines...); err != nil {
			return nil, err
		}
	}

	for _, t := range l.Tracks {
		lines, err := parseLines(l.System, t.Lines)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t.ID, err)
		}
		if t.Platform != nil {
			if t.Platform.Direction.System() != l.System {
				return nil, fmt.Errorf("platform %d: direction %s does not belong to %s", t.ID, t.Platform.Direction, l.System)
			}
			_, err = n.AddPlatform(t.ID, t.Duration, t.Platform.Station, t.Platform.Direction, lines...)
		} else {
			_, err = n.AddTrack(t.ID, t.Duration, lines...)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, link := range l.Links {
		if err := n.Connect(link[0], link[1]); err != nil {
			return nil, fmt.Errorf("link %d→%d: %w", link[0], link[1], err)
		}
	}

	for _, s := range l.Switches {
		if _, err := n.AddSwitch(s.ID); err != nil {
			return nil, err
		}
		if err := n.AttachSwitch(s.ID, s.Approach, s.Departure); err != nil {
			return nil, err
		}
	}

	return n, nil
}
