// Command railsim runs a batch simulation and records it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/config"
	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/sim"
)

func main() {
	config.LoadDotEnv(".")
	cfg := config.Load()

	flag.StringVar(&cfg.NetworkPath, "network", cfg.NetworkPath, "comma-separated network layout files, one per system")
	flag.StringVar(&cfg.SchedulePath, "schedule", cfg.SchedulePath, "schedule file")
	flag.IntVar(&cfg.Ticks, "ticks", cfg.Ticks, "number of ticks to simulate")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path (ignored when DATABASE_URL is set)")
	noRecord := flag.Bool("no-record", false, "do not record the run")
	flag.Parse()

	zl, err := logging.Build(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(zl)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, !*noRecord); err != nil {
		log.Zap().Fatal("simulation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *logging.Logger, record bool) error {
	var store db.Store
	if record {
		var err error
		if store, err = db.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath, log); err != nil {
			return err
		}
		defer store.Close()
	}

	s, err := sim.Bootstrap(ctx, cfg, store, log, 0)
	if err != nil {
		return err
	}

	ran, runErr := s.Run(ctx, cfg.Ticks)
	s.Report()
	log.Info(fmt.Sprintf("Simulation finished after %d ticks", ran))

	if err := s.Finish(store, ran); err != nil {
		return err
	}
	return runErr
}
