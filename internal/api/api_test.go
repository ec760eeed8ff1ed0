package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"

	"github.com/mini-rodalies-3d/railsim/internal/db"
	"github.com/mini-rodalies-3d/railsim/internal/feed"
	"github.com/mini-rodalies-3d/railsim/internal/metrics"
	"github.com/mini-rodalies-3d/railsim/internal/models"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

func ptr[T any](v T) *T { return &v }

type fakeSource struct {
	snap *models.Tick
	late []metrics.LineStats
}

func (f *fakeSource) Latest() *models.Tick          { return f.snap }
func (f *fakeSource) Lateness() []metrics.LineStats { return f.late }
func (f *fakeSource) RunID() string                 { return "run-1" }

type fakeStats struct {
	rows []db.LatenessRow
	err  error
}

func (f *fakeStats) LatenessStats(ctx context.Context, runID string) ([]db.LatenessRow, error) {
	return f.rows, f.err
}

func newSource() *fakeSource {
	return &fakeSource{
		snap: &models.Tick{
			Tick:   42,
			Active: true,
			Trains: []models.Train{
				{TrainID: 7, System: "subway", Line: "G", Direction: "downtown", Status: "MOVING", TrackID: ptr(int32(3)), NextStopID: ptr(int64(2))},
				{TrainID: 8, System: "subway", Line: "L", Direction: "uptown", Status: "IDLE"},
				{TrainID: 9, System: "metro_north", Line: "Hudson", Direction: "inbound", Status: "ARRIVING", TrackID: ptr(int32(12))},
			},
			Switches: []models.Switch{
				{SwitchID: 1, System: "subway", Functional: true},
				{SwitchID: 2, System: "subway", Functional: false, FailureTimer: 3},
			},
		},
		late: []metrics.LineStats{
			{Line: transit.MustLine(transit.SystemSubway, "G"), Count: 4, Mean: 1, Max: 3, Late: 1, OnTime: 3},
			{Line: transit.MustLine(transit.SystemSubway, "L"), Count: 2, Mean: 4, Max: 5, Late: 2},
		},
	}
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestTrainsEndpoints(t *testing.T) {
	router := NewRouter(NewHandler(newSource(), nil, feed.DefaultOptions()), nil, []string{"*"})

	tests := []struct {
		name   string
		path   string
		status int
		ids    []int64
	}{
		{"all", "/api/trains", http.StatusOK, []int64{7, 8, 9}},
		{"active", "/api/trains?active=true", http.StatusOK, []int64{7, 9}},
		{"by system", "/api/trains?system=metro_north", http.StatusOK, []int64{9}},
		{"bad system", "/api/trains?system=tram", http.StatusBadRequest, nil},
		{"line", "/api/lines/G/trains", http.StatusOK, []int64{7}},
		{"line alias", "/api/lines/Hudson/trains?system=metro_north", http.StatusOK, []int64{9}},
		{"unknown line", "/api/lines/X9/trains", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, expected %d: %s", w.Code, tt.status, w.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp models.TrainsResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			var ids []int64
			for _, tr := range resp.Trains {
				ids = append(ids, tr.TrainID)
			}
			if diff := cmp.Diff(tt.ids, ids); diff != "" {
				t.Errorf("train ids (-want +got):\n%s", diff)
			}
			if resp.Count != len(tt.ids) || resp.Tick != 42 {
				t.Errorf("count=%d tick=%d", resp.Count, resp.Tick)
			}
		})
	}
}

func TestSwitchesAndHealth(t *testing.T) {
	router := NewRouter(NewHandler(newSource(), nil, feed.DefaultOptions()), nil, []string{"*"})

	var sw models.SwitchesResponse
	if err := json.NewDecoder(serve(t, router, "/api/switches").Body).Decode(&sw); err != nil {
		t.Fatal(err)
	}
	if len(sw.Switches) != 2 || sw.Failed != 1 {
		t.Errorf("switches = %+v", sw)
	}

	w := serve(t, router, "/health")
	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["runId"] != "run-1" || health["tick"] != float64(42) {
		t.Errorf("health = %v", health)
	}
}

func TestDelayStats(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		router := NewRouter(NewHandler(newSource(), nil, feed.DefaultOptions()), nil, []string{"*"})
		var resp models.DelayStatsResponse
		if err := json.NewDecoder(serve(t, router, "/api/delays/stats").Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		want := models.DelaySummary{Observations: 6, LateCount: 3, OnTimePercent: 50, MeanLateness: 2, MaxLateness: 5, WorstLine: "L"}
		if diff := cmp.Diff(want, resp.Summary); diff != "" {
			t.Errorf("summary (-want +got):\n%s", diff)
		}
		if len(resp.Lines) != 2 || resp.Lines[0].OnTimePercent != 75 {
			t.Errorf("lines = %+v", resp.Lines)
		}
	})

	t.Run("filtered", func(t *testing.T) {
		router := NewRouter(NewHandler(newSource(), nil, feed.DefaultOptions()), nil, []string{"*"})
		var resp models.DelayStatsResponse
		if err := json.NewDecoder(serve(t, router, "/api/delays/stats?line=g").Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Lines) != 1 || resp.Summary.WorstLine != "G" {
			t.Errorf("filtered response = %+v", resp)
		}
	})

	t.Run("from store", func(t *testing.T) {
		stats := &fakeStats{rows: []db.LatenessRow{{RunID: "run-1", System: "lirr", Line: "Babylon", Count: 10, Mean: 0.5, OnTime: 9, Late: 1, Max: 4}}}
		router := NewRouter(NewHandler(newSource(), stats, feed.DefaultOptions()), nil, []string{"*"})
		var resp models.DelayStatsResponse
		if err := json.NewDecoder(serve(t, router, "/api/delays/stats").Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Lines) != 1 || resp.Lines[0].Line != "Babylon" || resp.Summary.OnTimePercent != 90 {
			t.Errorf("store response = %+v", resp)
		}
	})

	t.Run("store error", func(t *testing.T) {
		router := NewRouter(NewHandler(newSource(), &fakeStats{err: errors.New("locked")}, feed.DefaultOptions()), nil, []string{"*"})
		if w := serve(t, router, "/api/delays/stats"); w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, expected 500", w.Code)
		}
	})
}

func TestTripUpdates(t *testing.T) {
	router := NewRouter(NewHandler(newSource(), nil, feed.DefaultOptions()), nil, []string{"*"})

	w := serve(t, router, "/api/gtfs-rt/trip-updates")
	if ct := w.Header().Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("content type = %q", ct)
	}
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("body is not a feed message: %v", err)
	}
	if len(msg.GetEntity()) != 4 {
		t.Errorf("got %d entities, expected 4 for two active trains", len(msg.GetEntity()))
	}

	w = serve(t, router, "/api/gtfs-rt/trip-updates?format=json")
	if !json.Valid(w.Body.Bytes()) {
		t.Errorf("json rendering is not valid JSON: %s", w.Body)
	}
}

func TestStreamPublish(t *testing.T) {
	s := NewStream(nil)
	defer s.Close()
	if !s.s.StreamExists(TickStream) {
		t.Fatal("tick stream not created")
	}
	// no subscribers: publishing must not block
	s.Publish(&models.Tick{Tick: 1})
}
