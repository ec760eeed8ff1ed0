// Package transit defines the closed vocabularies shared by every layer of the
// simulator: transit systems, their directions and train lines, and the state
// enums of signals, trains and schedule events.
package transit

import (
	"fmt"
	"strings"
)

// System identifies one of the simulated transit agencies
type System uint8

const (
	SystemSubway System = iota + 1
	SystemMetroNorth
	SystemLIRR
)

// AllSystems returns every supported system in run order
func AllSystems() []System {
	return []System{SystemSubway, SystemMetroNorth, SystemLIRR}
}

func (s System) String() string {
	switch s {
	case SystemSubway:
		return "subway"
	case SystemMetroNorth:
		return "metro_north"
	case SystemLIRR:
		return "lirr"
	default:
		return "unknown"
	}
}

// Directions returns the two directions of travel for the system.
// The first element is the direction yards dispatch toward by default.
func (s System) Directions() [2]Direction {
	switch s {
	case SystemSubway:
		return [2]Direction{Uptown, Downtown}
	case SystemMetroNorth:
		return [2]Direction{Inbound, Outbound}
	case SystemLIRR:
		return [2]Direction{Westbound, Eastbound}
	default:
		return [2]Direction{}
	}
}

// ParseSystem accepts the system name used in data file layouts ("subway", "metro_north", "lirr")
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subway", "sub":
		return SystemSubway, nil
	case "metro_north", "metro-north", "mnr":
		return SystemMetroNorth, nil
	case "lirr":
		return SystemLIRR, nil
	}
	return 0, fmt.Errorf("unknown transit system %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (s System) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *System) UnmarshalText(b []byte) error {
	v, err := ParseSystem(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
