package transit

import (
	"fmt"
	"strings"
)

// Direction is a direction of travel. Each value belongs to exactly one System,
// so a subway direction never compares equal to a commuter rail one.
type Direction uint8

const (
	NoDirection Direction = iota
	Uptown
	Downtown
	Inbound
	Outbound
	Westbound
	Eastbound
)

// System reports which transit system the direction belongs to
func (d Direction) System() System {
	switch d {
	case Uptown, Downtown:
		return SystemSubway
	case Inbound, Outbound:
		return SystemMetroNorth
	case Westbound, Eastbound:
		return SystemLIRR
	default:
		return 0
	}
}

// Opposite returns the reverse direction within the same system
func (d Direction) Opposite() Direction {
	switch d {
	case Uptown:
		return Downtown
	case Downtown:
		return Uptown
	case Inbound:
		return Outbound
	case Outbound:
		return Inbound
	case Westbound:
		return Eastbound
	case Eastbound:
		return Westbound
	default:
		return NoDirection
	}
}

func (d Direction) String() string {
	switch d {
	case Uptown:
		return "uptown"
	case Downtown:
		return "downtown"
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	case Westbound:
		return "westbound"
	case Eastbound:
		return "eastbound"
	default:
		return "none"
	}
}

// ParseDirection converts the lowercase wire form of a direction.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uptown":
		return Uptown, nil
	case "downtown":
		return Downtown, nil
	case "inbound":
		return Inbound, nil
	case "outbound":
		return Outbound, nil
	case "westbound":
		return Westbound, nil
	case "eastbound":
		return Eastbound, nil
	}
	return NoDirection, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
