// Package db records simulation runs into SQLite or PostgreSQL.
//
// Movements are buffered in memory by a recorder and written in one
// transaction per Flush, together with the per-line lateness statistics.
package db

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/metrics"
	"github.com/mini-rodalies-3d/railsim/internal/network"
)

// Run describes one simulation run
type Run struct {
	ID        string
	StartedAt time.Time
	Seed      uint64
	Ticks     int
	Systems   []string
}

// LatenessRow is the persisted lateness summary of a line within a run
type LatenessRow struct {
	RunID  string
	System string
	Line   string
	Count  int
	Mean   float64
	StdDev float64
	Late   int
	OnTime int
	Max    int
	m2     float64
}

// Recorder buffers movements until flushed
type Recorder interface {
	dispatch.Recorder
	Flush(ctx context.Context) error
}

// Store is a run database
type Store interface {
	CreateRun(ctx context.Context, run Run) (string, error)
	FinishRun(ctx context.Context, runID string, ticks int) error
	Recorder(runID string) Recorder
	LatenessStats(ctx context.Context, runID string) ([]LatenessRow, error)
	Close() error
}

// buffer is the thread-safe movement queue shared by both recorders. Agencies
// of different systems record from their own goroutines.
type buffer struct {
	mu      sync.Mutex
	pending []dispatch.Movement
}

func (b *buffer) Record(m dispatch.Movement) {
	b.mu.Lock()
	b.pending = append(b.pending, m)
	b.mu.Unlock()
}

func (b *buffer) drain() []dispatch.Movement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// observations groups scheduled stop lateness by (system, line)
type lineKey struct {
	system, line string
}

func observations(ms []dispatch.Movement) map[lineKey][]int {
	obs := lo.Filter(ms, func(m dispatch.Movement, _ int) bool {
		if !m.Scheduled || m.Line.IsZero() {
			return false
		}
		switch m.Kind {
		case dispatch.KindSpawn, dispatch.KindDespawn, dispatch.KindArrival, dispatch.KindDeparture:
			return true
		}
		return false
	})
	grouped := lo.GroupBy(obs, func(m dispatch.Movement) lineKey {
		return lineKey{system: m.System.String(), line: m.Line.Code}
	})
	return lo.MapValues(grouped, func(ms []dispatch.Movement, _ lineKey) []int {
		return lo.Map(ms, func(m dispatch.Movement, _ int) int { return m.Lateness })
	})
}

// fold applies new observations to a stored row with Welford's algorithm
func (r *LatenessRow) fold(values []int) {
	w := metrics.Welford{Count: r.Count, Mean: r.Mean, M2: r.m2}
	for _, v := range values {
		w.Update(float64(v))
		abs := max(v, -v)
		if v > metrics.LateThreshold {
			r.Late++
		} else {
			r.OnTime++
		}
		if abs > r.Max {
			r.Max = abs
		}
	}
	r.Count, r.Mean, r.m2 = w.Count, w.Mean, w.M2
	r.StdDev = w.StdDev()
}

// nullable helpers map "not applicable" ids and ticks to NULL
func nullTrain(id network.TrainID) any {
	if id == network.NoTrain {
		return nil
	}
	return int64(id)
}

func nullStation(id network.StationID) any {
	if id == network.NoStation {
		return nil
	}
	return int64(id)
}

func nullTrack(id network.TrackID) any {
	if id == network.NoTrack {
		return nil
	}
	return int64(id)
}

func nullSwitch(id network.SwitchID) any {
	if id == network.NoSwitch {
		return nil
	}
	return int64(id)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTick(t int) any {
	if t < 0 {
		return nil
	}
	return t
}
