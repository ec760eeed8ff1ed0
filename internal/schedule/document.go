package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/samber/lo"

	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Document is the schedule feed: planned runs keyed by line name
type Document struct {
	TrainLines map[string]LineSchedule `json:"train_lines"`
}

// LineSchedule lists the planned runs of one line
type LineSchedule struct {
	Trains []TrainSchedule `json:"trains"`
}

// TrainSchedule is one planned run
type TrainSchedule struct {
	TrainID   network.TrainID `json:"train_id"`
	Direction string          `json:"direction"`
	Headsign  string          `json:"headsign"`
	Schedule  []Stop          `json:"schedule"`
}

// Stop is a planned call at a station. Ticks are NotApplicable when absent.
type Stop struct {
	StationID     network.StationID `json:"station_id"`
	StationName   string            `json:"station_name"`
	ArrivalTick   int               `json:"arrival_tick"`
	DepartureTick int               `json:"departure_tick"`
}

// ParseFile reads a schedule document from disk
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a schedule document
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	return &doc, nil
}

// Line returns the runs planned for the line. Keys are matched through
// transit.ParseLine so that branch names resolve to their line.
func (d *Document) Line(line transit.TrainLine) (LineSchedule, bool) {
	if d == nil {
		return LineSchedule{}, false
	}
	var merged LineSchedule
	found := false
	keys := lo.Keys(d.TrainLines)
	slices.Sort(keys)
	for _, key := range keys {
		l, err := transit.ParseLine(line.System, key)
		if err != nil || l != line {
			continue
		}
		found = true
		merged.Trains = append(merged.Trains, d.TrainLines[key].Trains...)
	}
	return merged, found
}

// Events expands a run into its arrival and departure events
func (ts TrainSchedule) Events() ([]Event, error) {
	dir, err := transit.ParseDirection(ts.Direction)
	if err != nil {
		return nil, fmt.Errorf("train %d: %w", ts.TrainID, err)
	}
	var out []Event
	for _, stop := range ts.Schedule {
		if stop.ArrivalTick != NotApplicable {
			out = append(out, Event{
				Tick:      stop.ArrivalTick,
				TrainID:   ts.TrainID,
				StationID: stop.StationID,
				Direction: dir,
				Type:      transit.Arrival,
			})
		}
		if stop.DepartureTick != NotApplicable {
			out = append(out, Event{
				Tick:      stop.DepartureTick,
				TrainID:   ts.TrainID,
				StationID: stop.StationID,
				Direction: dir,
				Type:      transit.Departure,
			})
		}
	}
	return out, nil
}

// Stations returns the called stations in running order
func (ts TrainSchedule) Stations() []network.StationID {
	out := make([]network.StationID, 0, len(ts.Schedule))
	for _, stop := range ts.Schedule {
		out = append(out, stop.StationID)
	}
	return out
}
