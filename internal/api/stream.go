package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/models"
)

// TickStream is the SSE stream name carrying one snapshot per tick
const TickStream = "ticks"

// Stream publishes tick snapshots to SSE subscribers
type Stream struct {
	s   *sse.Server
	log *logging.Logger
}

func NewStream(log *logging.Logger) *Stream {
	if log == nil {
		log = logging.NewNop()
	}
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(TickStream)
	return &Stream{s: s, log: log}
}

// Publish sends a snapshot to every subscriber without blocking the simulation
func (s *Stream) Publish(snap *models.Tick) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("failed to marshal tick snapshot", zap.Int("tick", snap.Tick), zap.Error(err))
		return
	}
	s.s.TryPublish(TickStream, &sse.Event{Data: data})
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}

func (s *Stream) Close() {
	s.s.Close()
}
