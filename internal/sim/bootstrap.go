package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/config"
	"github.com/mini-rodalies-3d/railsim/internal/control"
	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/metrics"
	"github.com/mini-rodalies-3d/railsim/internal/schedule"
)

// Bootstrap builds a simulation from configuration: network layouts,
// schedule and, when store is non-nil, a recorded run. interval paces the
// tick loop.
func Bootstrap(ctx context.Context, cfg *config.Config, store db.Store, log *logging.Logger, interval time.Duration) (*Simulation, error) {
	if log == nil {
		log = logging.NewNop()
	}
	paths := strings.Split(cfg.NetworkPath, ",")
	doc, err := schedule.ParseFile(cfg.SchedulePath)
	if err != nil {
		return nil, err
	}

	var sink db.Recorder
	lateness := metrics.NewLateness()
	params := cfg.Params()
	// sink is bound once the run exists; nothing is recorded before the first tick
	deferred := dispatch.RecorderFunc(func(m dispatch.Movement) {
		if sink != nil {
			sink.Record(m)
		}
	})
	opts := control.Options{Logger: log, Params: &params, Recorder: Tee(lateness, deferred)}

	agencies, err := LoadAgencies(paths, cfg.Seed, opts)
	if err != nil {
		return nil, err
	}
	events := lo.SumBy(agencies, func(a *control.Agency) int { return a.LoadSchedule(doc) })
	log.Info(fmt.Sprintf("Loaded %d systems and %d scheduled events", len(agencies), events))

	var runID string
	if store != nil {
		systems := lo.Map(agencies, func(a *control.Agency, _ int) string { return a.System().String() })
		runID, err = store.CreateRun(ctx, db.Run{Seed: cfg.Seed, Ticks: cfg.Ticks, Systems: systems})
		if err != nil {
			return nil, err
		}
		sink = store.Recorder(runID)
		log.Info("Recording run", zap.String("run", runID))
	}

	return New(control.NewCentral(agencies...), Options{
		Logger:   log,
		RunID:    runID,
		Sink:     sink,
		Lateness: lateness,
		Interval: interval,
	}), nil
}

// Finish flushes what is left of the run and stamps it as finished. It uses
// a fresh context so that a cancelled run is still closed out.
func (s *Simulation) Finish(store db.Store, ticks int) error {
	if store == nil || s.sink == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.sink.Flush(ctx); err != nil {
		return err
	}
	return store.FinishRun(ctx, s.runID, ticks)
}
