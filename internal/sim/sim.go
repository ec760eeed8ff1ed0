// Package sim drives a simulation run: it steps the central control, takes a
// snapshot after every tick, flushes recorded movements and notifies
// observers such as the SSE stream.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/control"
	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/metrics"
	"github.com/mini-rodalies-3d/railsim/internal/models"
)

// Options configures a Simulation. Sink and Lateness may be nil.
type Options struct {
	Logger   *logging.Logger
	RunID    string
	Sink     db.Recorder
	Lateness *metrics.Lateness
	Interval time.Duration // pause between ticks, zero runs flat out
}

// Simulation owns the tick loop of a run
type Simulation struct {
	central  *control.Central
	log      *logging.Logger
	runID    string
	sink     db.Recorder
	lateness *metrics.Lateness
	interval time.Duration

	obsMu     sync.Mutex
	observers []func(*models.Tick)

	mu   sync.RWMutex
	last *models.Tick
}

func New(central *control.Central, opts Options) *Simulation {
	s := &Simulation{
		central:  central,
		log:      opts.Logger,
		runID:    opts.RunID,
		sink:     opts.Sink,
		lateness: opts.Lateness,
		interval: opts.Interval,
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	if s.lateness == nil {
		s.lateness = metrics.NewLateness()
	}
	s.last = Snapshot(central, s.runID, -1)
	return s
}

// Tee fans movements out to several recorders; nil entries are skipped
func Tee(recs ...dispatch.Recorder) dispatch.Recorder {
	return dispatch.RecorderFunc(func(m dispatch.Movement) {
		for _, r := range recs {
			if r != nil {
				r.Record(m)
			}
		}
	})
}

// OnTick registers an observer called with every new snapshot
func (s *Simulation) OnTick(fn func(*models.Tick)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// Latest returns the most recent snapshot. Snapshots are never mutated.
func (s *Simulation) Latest() *models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Simulation) Central() *control.Central { return s.central }
func (s *Simulation) RunID() string             { return s.runID }

// Lateness returns the per-line lateness summaries collected so far
func (s *Simulation) Lateness() []metrics.LineStats { return s.lateness.Stats() }

// Run steps up to ticks ticks. It stops early when every system is idle and
// returns the number of ticks run.
func (s *Simulation) Run(ctx context.Context, ticks int) (int, error) {
	var pace <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		pace = t.C
	}

	tick := 0
	for ; tick < ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return tick, err
		}
		if !s.central.IsActive() {
			s.log.Info(fmt.Sprintf("All systems idle after %d ticks", tick))
			break
		}
		if err := s.central.Step(ctx, tick); err != nil {
			return tick, err
		}
		s.publish(Snapshot(s.central, s.runID, tick))

		if s.sink != nil {
			if err := s.sink.Flush(ctx); err != nil {
				s.log.Warn("failed to flush movements", zap.Int("tick", tick), zap.Error(err))
			}
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return tick + 1, ctx.Err()
			case <-pace:
			}
		}
	}
	return tick, nil
}

func (s *Simulation) publish(snap *models.Tick) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	s.obsMu.Lock()
	observers := append(([]func(*models.Tick))(nil), s.observers...)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// Report logs the per-line lateness summary of the run
func (s *Simulation) Report() {
	for _, st := range s.lateness.Stats() {
		s.log.Info(fmt.Sprintf("Line %s: %d observations, mean lateness %.2f ticks, max %d, %d late",
			st.Line, st.Count, st.Mean, st.Max, st.Late),
			zap.String("line", st.Line.Key()), zap.Float64("stddev", st.StdDev), zap.Int("signal_failures", st.Failure))
	}
}
