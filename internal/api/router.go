// Package api exposes a running simulation over HTTP: JSON snapshots, lateness
// statistics, a GTFS-realtime feed and an SSE tick stream.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter wires the handler and stream into a chi router
func NewRouter(h *Handler, stream *Stream, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Get("/api/trains", h.GetTrains)
	r.Get("/api/lines/{line}/trains", h.GetLineTrains)
	r.Get("/api/switches", h.GetSwitches)
	r.Get("/api/delays/stats", h.GetDelayStats)
	r.Get("/api/gtfs-rt/trip-updates", h.GetTripUpdates)

	if stream != nil {
		r.Get("/api/stream", stream.ServeHTTP)
	}
	return r
}
