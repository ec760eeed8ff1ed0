package transit

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// TrainLine is a named service pattern within one transit system.
// The zero value is not a valid line.
type TrainLine struct {
	System System
	Code   string
}

// IsZero reports whether the line is unset
func (l TrainLine) IsZero() bool {
	return l.System == 0 && l.Code == ""
}

func (l TrainLine) String() string {
	return l.Code
}

// Key returns a system-qualified identifier, e.g. "subway/A"
func (l TrainLine) Key() string {
	return l.System.String() + "/" + l.Code
}

var (
	subwayLines = []string{
		"1", "2", "3", "4", "5", "6", "7",
		"A", "C", "E", "N", "Q", "R", "W", "B", "D", "F", "M",
		"G", "L", "J", "Z", "S", "GS", "FS", "H", "SI",
	}
	metroNorthLines = []string{"Harlem", "Hudson", "New Haven"}
	lirrLines       = []string{
		"Babylon", "City Terminal", "Far Rockaway", "Hempstead", "Long Beach",
		"Montauk", "Oyster Bay", "Port Jefferson", "Port Washington",
		"Ronkonkoma", "West Hempstead",
	}

	// Branch names that operate as part of a modelled line
	lineAliases = map[System]map[string]string{
		SystemSubway:     {"SIR": "SI"},
		SystemMetroNorth: {"New Canaan": "New Haven", "Waterbury": "New Haven", "Danbury": "New Haven"},
	}
)

// Lines returns every line of the given system
func Lines(s System) []TrainLine {
	var codes []string
	switch s {
	case SystemSubway:
		codes = subwayLines
	case SystemMetroNorth:
		codes = metroNorthLines
	case SystemLIRR:
		codes = lirrLines
	}
	return lo.Map(codes, func(code string, _ int) TrainLine {
		return TrainLine{System: s, Code: code}
	})
}

// ParseLine resolves a line code or display name within a system.
// LIRR names may carry a trailing " Branch"; subway codes are case-insensitive.
func ParseLine(s System, name string) (TrainLine, error) {
	name = strings.TrimSpace(name)
	if s == SystemLIRR {
		name = strings.TrimSuffix(name, " Branch")
	}
	if s == SystemSubway {
		name = strings.ToUpper(name)
	}
	if alias, ok := lineAliases[s][name]; ok {
		name = alias
	}

	line, ok := lo.Find(Lines(s), func(l TrainLine) bool {
		return strings.EqualFold(l.Code, name)
	})
	if !ok {
		return TrainLine{}, fmt.Errorf("unknown %s line %q", s, name)
	}
	return line, nil
}

// MustLine is ParseLine for statically known lines; it panics on unknown names.
func MustLine(s System, name string) TrainLine {
	l, err := ParseLine(s, name)
	if err != nil {
		panic(err)
	}
	return l
}
