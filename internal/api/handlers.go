package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/feed"
	"github.com/mini-rodalies-3d/railsim/internal/metrics"
	"github.com/mini-rodalies-3d/railsim/internal/models"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Source is the running simulation as seen by the API
type Source interface {
	Latest() *models.Tick
	Lateness() []metrics.LineStats
	RunID() string
}

// StatsRepository reads persisted lateness statistics
type StatsRepository interface {
	LatenessStats(ctx context.Context, runID string) ([]db.LatenessRow, error)
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler serves simulation state over HTTP
type Handler struct {
	src   Source
	stats StatsRepository
	feed  feed.Options
}

// NewHandler creates a handler; stats may be nil, in which case delay
// statistics come from the in-memory aggregate
func NewHandler(src Source, stats StatsRepository, feedOpts feed.Options) *Handler {
	return &Handler{src: src, stats: stats, feed: feedOpts}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.src.Latest()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"runId":     h.src.RunID(),
		"tick":      snap.Tick,
		"active":    snap.Active,
		"timestamp": time.Now().UTC(),
	})
}

// GetTrains handles GET /api/trains
// Query params: system (optional), active=true to drop idle and retired trains
func (h *Handler) GetTrains(w http.ResponseWriter, r *http.Request) {
	snap := h.src.Latest()
	trains := snap.Trains
	if r.URL.Query().Get("active") == "true" {
		trains = snap.ActiveTrains()
	}
	if system := r.URL.Query().Get("system"); system != "" {
		s, err := transit.ParseSystem(system)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid system",
				Details: map[string]interface{}{"system": system},
			})
			return
		}
		trains = lo.Filter(trains, func(t models.Train, _ int) bool { return t.System == s.String() })
	}

	writeJSON(w, http.StatusOK, models.TrainsResponse{Trains: nonNil(trains), Count: len(trains), Tick: snap.Tick})
}

// GetLineTrains handles GET /api/lines/{line}/trains
// Query params: system (optional, default subway)
func (h *Handler) GetLineTrains(w http.ResponseWriter, r *http.Request) {
	system := transit.SystemSubway
	if q := r.URL.Query().Get("system"); q != "" {
		s, err := transit.ParseSystem(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid system",
				Details: map[string]interface{}{"system": q},
			})
			return
		}
		system = s
	}

	name := chi.URLParam(r, "line")
	line, err := transit.ParseLine(system, name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Unknown line",
			Details: map[string]interface{}{"line": name, "system": system.String()},
		})
		return
	}

	snap := h.src.Latest()
	trains := lo.Filter(snap.Trains, func(t models.Train, _ int) bool {
		return t.System == system.String() && t.Line == line.Code
	})
	writeJSON(w, http.StatusOK, models.TrainsResponse{Trains: nonNil(trains), Count: len(trains), Tick: snap.Tick})
}

// GetSwitches handles GET /api/switches
func (h *Handler) GetSwitches(w http.ResponseWriter, r *http.Request) {
	snap := h.src.Latest()
	failed := lo.CountBy(snap.Switches, func(s models.Switch) bool { return !s.Functional })
	writeJSON(w, http.StatusOK, models.SwitchesResponse{Switches: nonNil(snap.Switches), Failed: failed, Tick: snap.Tick})
}

// GetDelayStats handles GET /api/delays/stats
// Query params: line (optional)
func (h *Handler) GetDelayStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var lines []models.LineLateness
	if h.stats != nil {
		rows, err := h.stats.LatenessStats(ctx, h.src.RunID())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to get delay stats",
				Details: map[string]interface{}{"error": err.Error()},
			})
			return
		}
		for _, row := range rows {
			lines = append(lines, models.LineLateness{
				System:           row.System,
				Line:             row.Line,
				ObservationCount: row.Count,
				MeanLateness:     row.Mean,
				StdDev:           row.StdDev,
				LateCount:        row.Late,
				OnTimePercent:    models.OnTimePercent(row.OnTime, row.Count),
				MaxLateness:      row.Max,
			})
		}
	} else {
		for _, st := range h.src.Lateness() {
			lines = append(lines, models.LineLateness{
				System:           st.Line.System.String(),
				Line:             st.Line.Code,
				ObservationCount: st.Count,
				MeanLateness:     st.Mean,
				StdDev:           st.StdDev,
				LateCount:        st.Late,
				OnTimePercent:    models.OnTimePercent(st.OnTime, st.Count),
				MaxLateness:      st.Max,
			})
		}
	}

	if line := r.URL.Query().Get("line"); line != "" {
		lines = lo.Filter(lines, func(l models.LineLateness, _ int) bool { return strings.EqualFold(l.Line, line) })
	}

	writeJSON(w, http.StatusOK, models.DelayStatsResponse{
		RunID:       h.src.RunID(),
		Summary:     summarize(lines),
		Lines:       nonNil(lines),
		LastChecked: time.Now().UTC(),
	})
}

func summarize(lines []models.LineLateness) models.DelaySummary {
	var s models.DelaySummary
	var total float64
	worst := 0.0
	for _, l := range lines {
		s.Observations += l.ObservationCount
		s.LateCount += l.LateCount
		total += l.MeanLateness * float64(l.ObservationCount)
		s.MaxLateness = max(s.MaxLateness, l.MaxLateness)
		if l.ObservationCount > 0 && (s.WorstLine == "" || l.MeanLateness > worst) {
			worst = l.MeanLateness
			s.WorstLine = l.Line
		}
	}
	if s.Observations > 0 {
		s.OnTimePercent = models.OnTimePercent(s.Observations-s.LateCount, s.Observations)
		s.MeanLateness = total / float64(s.Observations)
	}
	return s
}

// GetTripUpdates handles GET /api/gtfs-rt/trip-updates
// Query params: format=json for a readable rendering of the protobuf feed
func (h *Handler) GetTripUpdates(w http.ResponseWriter, r *http.Request) {
	msg := feed.Build(h.src.Latest(), h.feed)

	if r.URL.Query().Get("format") == "json" {
		b, err := protojson.Marshal(msg)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to encode feed"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
		return
	}

	b, err := proto.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to encode feed"})
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clip(s)
}
