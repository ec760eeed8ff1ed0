package transit

import (
	"fmt"
	"strings"
)

// SignalState is the aspect displayed by a signal
type SignalState int32

const (
	Red SignalState = iota
	Yellow
	Green
)

func (s SignalState) String() string {
	switch s {
	case Red:
		return "RED"
	case Yellow:
		return "YELLOW"
	case Green:
		return "GREEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s SignalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TrainStatus is the lifecycle state of a train
type TrainStatus uint8

const (
	Idle TrainStatus = iota
	Ready
	Moving
	Arriving
	Departing
	OutOfService
)

func (s TrainStatus) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Ready:
		return "READY"
	case Moving:
		return "MOVING"
	case Arriving:
		return "ARRIVING"
	case Departing:
		return "DEPARTING"
	case OutOfService:
		return "OUTOFSERVICE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s TrainStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ServiceType distinguishes local and express stopping patterns
type ServiceType uint8

const (
	Local ServiceType = iota
	Express
	Both
)

func (s ServiceType) String() string {
	switch s {
	case Local:
		return "local"
	case Express:
		return "express"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// ParseServiceType accepts "local", "express" or "both"; empty means local
func ParseServiceType(s string) (ServiceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return Local, nil
	case "express":
		return Express, nil
	case "both":
		return Both, nil
	}
	return Local, fmt.Errorf("unknown service type %q", s)
}

// EventType classifies a schedule event
type EventType uint8

const (
	Arrival EventType = iota
	Departure
)

func (e EventType) String() string {
	if e == Departure {
		return "DEPARTURE"
	}
	return "ARRIVAL"
}
