// Command simserver runs a paced simulation and serves its state over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mini-rodalies-3d/railsim/internal/api"
	"github.com/mini-rodalies-3d/railsim/internal/config"
	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/feed"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/sim"
)

func main() {
	config.LoadDotEnv(".")
	cfg := config.Load()

	zl, err := logging.Build(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(zl)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Zap().Fatal("server failed", zap.Error(err))
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	store, err := db.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := sim.Bootstrap(ctx, cfg, store, log, time.Duration(cfg.TickInterval)*time.Millisecond)
	if err != nil {
		return err
	}

	stream := api.NewStream(log)
	defer stream.Close()
	s.OnTick(stream.Publish)

	origins := strings.Split(cfg.CORSOrigins, ",")
	handler := api.NewHandler(s, store, feed.Options{Epoch: time.Now().UTC(), TickSeconds: time.Minute})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, stream, origins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("API server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ran, err := s.Run(ctx, cfg.Ticks)
		s.Report()
		if ferr := s.Finish(store, ran); ferr != nil {
			log.Warn("failed to close out run", zap.Error(ferr))
		}
		log.Info(fmt.Sprintf("Simulation finished after %d ticks; still serving the final state", ran))
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
