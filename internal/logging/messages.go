package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Arrival logs a train reaching a platform against its planned tick
func (l *Logger) Arrival(actual, planned int, train int64, station string, platform int) {
	l.Info(fmt.Sprintf("Train %d arrived at station %s on platform %d (actual tick: %d, planned tick: %d)",
		train, station, platform, actual, planned),
		zap.Int64("train", train), zap.Int("tick", actual), zap.Int("lateness", actual-planned))
}

// Departure logs a train leaving a platform against its planned tick
func (l *Logger) Departure(actual, planned int, train int64, station string, platform int) {
	l.Info(fmt.Sprintf("Train %d is departing station %s from platform %d (actual tick: %d, planned tick: %d)",
		train, station, platform, actual, planned),
		zap.Int64("train", train), zap.Int("tick", actual), zap.Int("lateness", actual-planned))
}

// SignalChange logs a new signal aspect
func (l *Logger) SignalChange(tick, signal int, state transit.SignalState) {
	l.Info(fmt.Sprintf("Signal %d changed state to %s at tick %d", signal, state, tick),
		zap.Int("signal", signal), zap.Int("tick", tick))
}

// Spawn logs a train leaving the yard
func (l *Logger) Spawn(actual, planned int, train int64, dir transit.Direction) {
	l.Info(fmt.Sprintf("Train %d is leaving the yard (actual tick: %d, planned tick: %d)", train, actual, planned),
		zap.Int64("train", train), zap.Stringer("direction", dir), zap.Int("tick", actual))
}

// Despawn logs a train entering the yard
func (l *Logger) Despawn(actual, planned int, train int64, dir transit.Direction) {
	l.Info(fmt.Sprintf("Train %d is arriving at yard (actual tick: %d, planned tick: %d)", train, actual, planned),
		zap.Int64("train", train), zap.Stringer("direction", dir), zap.Int("tick", actual))
}
