package metrics

import (
	"cmp"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// LateThreshold is the lateness in ticks above which a stop counts as late
const LateThreshold = 2

// LineStats summarises the lateness of one line
type LineStats struct {
	Line    transit.TrainLine
	Count   int
	Mean    float64
	StdDev  float64
	Max     int
	Late    int
	OnTime  int
	Failure int // signal failures injected on the line
}

type lineAcc struct {
	w       Welford
	max     int
	late    int
	onTime  int
	failure int
}

// Lateness aggregates scheduled arrivals and departures per line. It is a
// dispatch.Recorder and is safe to share between agencies.
type Lateness struct {
	mu    sync.Mutex
	lines map[transit.TrainLine]*lineAcc
}

func NewLateness() *Lateness {
	return &Lateness{lines: make(map[transit.TrainLine]*lineAcc)}
}

func (l *Lateness) acc(line transit.TrainLine) *lineAcc {
	a, ok := l.lines[line]
	if !ok {
		a = &lineAcc{}
		l.lines[line] = a
	}
	return a
}

// Record implements dispatch.Recorder
func (l *Lateness) Record(m dispatch.Movement) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch m.Kind {
	case dispatch.KindSignalFailure:
		l.acc(m.Line).failure++
	case dispatch.KindArrival, dispatch.KindDeparture, dispatch.KindSpawn, dispatch.KindDespawn:
		if !m.Scheduled || m.Line.IsZero() {
			return
		}
		a := l.acc(m.Line)
		a.w.Update(float64(m.Lateness))
		if abs := max(m.Lateness, -m.Lateness); abs > a.max {
			a.max = abs
		}
		if m.Lateness > LateThreshold {
			a.late++
		} else {
			a.onTime++
		}
	}
}

// Stats returns per-line summaries ordered by system then line code
func (l *Lateness) Stats() []LineStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := lo.MapToSlice(l.lines, func(line transit.TrainLine, a *lineAcc) LineStats {
		return LineStats{
			Line:    line,
			Count:   a.w.Count,
			Mean:    a.w.Mean,
			StdDev:  a.w.StdDev(),
			Max:     a.max,
			Late:    a.late,
			OnTime:  a.onTime,
			Failure: a.failure,
		}
	})
	slices.SortFunc(out, func(x, y LineStats) int {
		if c := cmp.Compare(x.Line.System, y.Line.System); c != 0 {
			return c
		}
		return cmp.Compare(x.Line.Code, y.Line.Code)
	})
	return out
}
