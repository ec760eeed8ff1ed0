package metrics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

func TestWelford(t *testing.T) {
	var w Welford
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Update(v)
	}
	if w.Count != 8 || w.Mean != 5 {
		t.Errorf("count=%d mean=%v, expected 8 and 5", w.Count, w.Mean)
	}
	if math.Abs(w.StdDev()-2) > 1e-9 {
		t.Errorf("stddev = %v, expected 2", w.StdDev())
	}

	r := Resume(w.Mean, w.StdDev(), w.Count)
	if math.Abs(r.M2-w.M2) > 1e-9 {
		t.Errorf("resumed M2 = %v, expected %v", r.M2, w.M2)
	}
	if (&Welford{Count: 1}).StdDev() != 0 {
		t.Error("stddev of a single observation must be 0")
	}
}

func TestLatenessRecorder(t *testing.T) {
	g := transit.MustLine(transit.SystemSubway, "G")
	hudson := transit.MustLine(transit.SystemMetroNorth, "Hudson")
	l := NewLateness()

	for _, m := range []dispatch.Movement{
		{Line: g, Kind: dispatch.KindSpawn, Lateness: 0, Scheduled: true},
		{Line: g, Kind: dispatch.KindArrival, Lateness: 4, Scheduled: true},
		{Line: g, Kind: dispatch.KindDeparture, Lateness: -1, Scheduled: true},
		{Line: g, Kind: dispatch.KindArrival, Lateness: 9}, // unscheduled
		{Line: g, Kind: dispatch.KindPlatformDelay, Ticks: 3, Scheduled: true},
		{Line: g, Kind: dispatch.KindSignalFailure},
		{Line: hudson, Kind: dispatch.KindDespawn, Lateness: -3, Scheduled: true},
		{Kind: dispatch.KindSwitchFailure},
	} {
		l.Record(m)
	}

	want := []LineStats{
		{Line: g, Count: 3, Mean: 1, Max: 4, Late: 1, OnTime: 2, Failure: 1},
		{Line: hudson, Count: 1, Mean: -3, Max: 3, OnTime: 1},
	}
	if diff := cmp.Diff(want, l.Stats(), cmpopts.IgnoreFields(LineStats{}, "StdDev")); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}
