package control

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mini-rodalies-3d/railsim/internal/chance"
	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/schedule"
	"github.com/mini-rodalies-3d/railsim/internal/train"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

var (
	lineG = transit.MustLine(transit.SystemSubway, "G")
	lineL = transit.MustLine(transit.SystemSubway, "L")
)

// Two platforms merge through switch 1 onto track 3:
//
//	1 (G) ─┐
//	       ├─ sw1 ─ 3 ─ 4 ─ 8
//	2 (L) ─┘
//
// and a separate spur 5 ─ sw2 ─ 6 for line G.
func buildJunction(t *testing.T) *network.Network {
	t.Helper()
	n := network.New(transit.SystemSubway)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := n.AddStation(1, "Court Sq", false, lineG)
	must(err)
	_, err = n.AddStation(2, "Lorimer St", false, lineL)
	must(err)
	_, err = n.AddStation(3, "Greenpoint Av", false, lineG)
	must(err)

	_, err = n.AddPlatform(1, 1, 1, transit.Downtown, lineG)
	must(err)
	_, err = n.AddPlatform(2, 1, 2, transit.Downtown, lineL)
	must(err)
	_, err = n.AddTrack(3, 1, lineG, lineL)
	must(err)
	_, err = n.AddTrack(4, 1, lineG, lineL)
	must(err)
	_, err = n.AddTrack(8, 1, lineG, lineL)
	must(err)
	_, err = n.AddPlatform(5, 1, 3, transit.Downtown, lineG)
	must(err)
	_, err = n.AddTrack(6, 1, lineG)
	must(err)

	must(n.Connect(1, 3))
	must(n.Connect(2, 3))
	must(n.Connect(3, 4))
	must(n.Connect(4, 8))
	must(n.Connect(5, 6))

	_, err = n.AddSwitch(1)
	must(err)
	must(n.AttachSwitch(1, []network.TrackID{1, 2}, []network.TrackID{3}))
	_, err = n.AddSwitch(2)
	must(err)
	must(n.AttachSwitch(2, []network.TrackID{5}, []network.TrackID{6}))
	return n
}

func spawnAt(t *testing.T, n *network.Network, id network.TrainID, line transit.TrainLine, platform network.TrackID) *train.Train {
	t.Helper()
	tr := train.New(n, id, line, transit.Local, "", transit.Downtown)
	n.Track(platform).Signal().ChangeState(transit.Green)
	if !tr.Spawn(platform) {
		t.Fatalf("train %d could not spawn on %d", id, platform)
	}
	return tr
}

func submit(a *Agency, tr *train.Train, sw network.SwitchID, to network.TrackID, priority, tick int) {
	a.RequestSwitch(dispatch.SwitchRequest{
		Train:       tr,
		Switch:      sw,
		From:        tr.CurrentTrack(),
		To:          to,
		Priority:    priority,
		RequestTick: tick,
		Dispatch:    a.Dispatch(tr.Line()),
	})
}

func grantedTrains(a *Agency, d *dispatch.Dispatch) []network.TrainID {
	var ids []network.TrainID
	for _, g := range a.GrantedLinks(d) {
		ids = append(ids, g.Train.ID())
	}
	return ids
}

func TestSingleGrantToHigherPriority(t *testing.T) {
	tests := []struct {
		name       string
		pG, pL     int
		wantG      []network.TrainID
		wantL      []network.TrainID
		wantLinkTo network.TrackID
	}{
		{"G is later", 10, 5, []network.TrainID{10}, nil, 3},
		{"L is later", 5, 10, nil, []network.TrainID{20}, 3},
		{"tie goes to the older request", 4, 4, []network.TrainID{10}, nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := buildJunction(t)
			g := spawnAt(t, n, 10, lineG, 1)
			l := spawnAt(t, n, 20, lineL, 2)
			a := New(n, []transit.TrainLine{lineG, lineL}, []*train.Train{g, l}, Options{})

			submit(a, g, 1, 3, tt.pG, 0)
			submit(a, l, 1, 3, tt.pL, 0)
			a.ResolveSwitches(0)

			if diff := cmp.Diff(tt.wantG, grantedTrains(a, a.Dispatch(lineG))); diff != "" {
				t.Errorf("G grants (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantL, grantedTrains(a, a.Dispatch(lineL))); diff != "" {
				t.Errorf("L grants (-want +got):\n%s", diff)
			}
			if to, ok := n.Switch(1).Link(1); tt.wantG != nil && (!ok || to != tt.wantLinkTo) {
				t.Errorf("switch link from 1 = %d %v, expected %d", to, ok, tt.wantLinkTo)
			}
			if a.PendingRequests(1) != 1 {
				t.Errorf("loser request should stay queued, pending = %d", a.PendingRequests(1))
			}
		})
	}
}

func TestPriorityScenario(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	l := spawnAt(t, n, 20, lineL, 2)
	g.SetLateness(10)
	l.SetLateness(5)
	a := New(n, []transit.TrainLine{lineG, lineL}, []*train.Train{g, l}, Options{})

	a.Run(0)
	if g.CurrentTrack() != 3 {
		t.Errorf("later train on %d, expected it through the switch on 3", g.CurrentTrack())
	}
	if l.CurrentTrack() != 2 {
		t.Errorf("earlier train on %d, expected it held on 2", l.CurrentTrack())
	}
	if p, ok := a.EffectivePriority(l.ID()); !ok || p != 5 {
		t.Errorf("held request priority = %d %v, expected 5", p, ok)
	}
	if _, ok := a.EffectivePriority(g.ID()); ok {
		t.Error("granted request should be removed")
	}
}

func TestSwitchIndependence(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	s := spawnAt(t, n, 11, lineG, 5)
	a := New(n, []transit.TrainLine{lineG}, []*train.Train{g, s}, Options{})

	submit(a, g, 1, 3, 0, 0)
	submit(a, s, 2, 6, 0, 0)
	a.ResolveSwitches(0)

	want := []network.TrainID{10, 11}
	if diff := cmp.Diff(want, grantedTrains(a, a.Dispatch(lineG))); diff != "" {
		t.Errorf("grants (-want +got):\n%s", diff)
	}
}

func TestAgingMonotonicity(t *testing.T) {
	n := buildJunction(t)
	l := spawnAt(t, n, 20, lineL, 2)
	a := New(n, []transit.TrainLine{lineL}, []*train.Train{l}, Options{})

	prev := -1
	for tick := 0; tick < 5; tick++ {
		submit(a, l, 1, 3, 3, tick)
		p, ok := a.EffectivePriority(l.ID())
		if !ok {
			t.Fatalf("tick %d: no live request", tick)
		}
		if p <= prev {
			t.Errorf("tick %d: effective priority %d did not grow past %d", tick, p, prev)
		}
		if p != 3+tick {
			t.Errorf("tick %d: effective priority %d, expected %d", tick, p, 3+tick)
		}
		prev = p
	}
	if a.PendingRequests(1) != 1 {
		t.Errorf("re-requests must not duplicate, pending = %d", a.PendingRequests(1))
	}
}

func TestAgedRequestOvertakes(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	l := spawnAt(t, n, 20, lineL, 2)
	a := New(n, []transit.TrainLine{lineG, lineL}, []*train.Train{g, l}, Options{})

	submit(a, l, 1, 3, 2, 0)
	submit(a, l, 1, 3, 2, 4) // waited four ticks: effective 6
	submit(a, g, 1, 3, 5, 4)
	a.ResolveSwitches(4)

	if diff := cmp.Diff([]network.TrainID{20}, grantedTrains(a, a.Dispatch(lineL))); diff != "" {
		t.Errorf("L grants (-want +got):\n%s", diff)
	}
}

func TestUnroutableHeadRequestHoldsSwitch(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	l := spawnAt(t, n, 20, lineL, 2)
	a := New(n, []transit.TrainLine{lineG, lineL}, []*train.Train{g, l}, Options{})

	// track 1 no longer feeds switch 1, so the head request cannot be routed
	if err := n.DetachSwitch(1, []network.TrackID{1}, nil); err != nil {
		t.Fatal(err)
	}
	submit(a, g, 1, 3, 10, 0)
	submit(a, l, 1, 3, 1, 0)
	a.ResolveSwitches(0)

	if got := a.GrantedLinks(a.Dispatch(lineG)); len(got) != 0 {
		t.Errorf("G grants = %+v, expected none", got)
	}
	if got := a.GrantedLinks(a.Dispatch(lineL)); len(got) != 0 {
		t.Errorf("lower priority request granted behind the head: %+v", got)
	}
	if a.PendingRequests(1) != 2 {
		t.Errorf("pending = %d, expected both requests kept", a.PendingRequests(1))
	}
	if _, _, ok := n.Switch(1).ActiveLink(); ok {
		t.Error("switch routed without a grant")
	}
}

func TestStaleRequestSkipped(t *testing.T) {
	tests := []struct {
		name  string
		stale func(t *testing.T, n *network.Network, tr *train.Train)
	}{
		{"despawned", func(t *testing.T, n *network.Network, tr *train.Train) { tr.Despawn() }},
		{"moved away", func(t *testing.T, n *network.Network, tr *train.Train) {
			n.Track(3).Signal().ChangeState(transit.Green)
			if !tr.MoveToTrack(3) {
				t.Fatal("move failed")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := buildJunction(t)
			g := spawnAt(t, n, 10, lineG, 1)
			l := spawnAt(t, n, 20, lineL, 2)
			a := New(n, []transit.TrainLine{lineG, lineL}, []*train.Train{g, l}, Options{})

			submit(a, g, 1, 3, 10, 0)
			submit(a, l, 1, 3, 1, 0)
			tt.stale(t, n, g)
			a.ResolveSwitches(0)

			if got := a.GrantedLinks(a.Dispatch(lineG)); len(got) != 0 {
				t.Errorf("stale request granted: %+v", got)
			}
			if diff := cmp.Diff([]network.TrainID{20}, grantedTrains(a, a.Dispatch(lineL))); diff != "" {
				t.Errorf("L grants (-want +got):\n%s", diff)
			}
			if _, ok := a.EffectivePriority(g.ID()); ok {
				t.Error("stale request should be dropped")
			}
		})
	}
}

func TestDifferentSwitchCancels(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	a := New(n, []transit.TrainLine{lineG}, []*train.Train{g}, Options{})

	submit(a, g, 1, 3, 7, 0)
	submit(a, g, 2, 6, 1, 3)

	if a.PendingRequests(1) != 0 {
		t.Errorf("old request still queued on switch 1")
	}
	if a.PendingRequests(2) != 1 {
		t.Errorf("new request missing on switch 2")
	}
	if p, _ := a.EffectivePriority(g.ID()); p != 1 {
		t.Errorf("effective priority = %d, expected 1 with no aging carried over", p)
	}
}

func TestSwitchFailureAndRepair(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var kinds []dispatch.MovementKind
	n := buildJunction(t)
	l := spawnAt(t, n, 20, lineL, 2)
	a := New(n, []transit.TrainLine{lineL}, []*train.Train{l}, Options{
		Logger:   logging.New(zap.New(core)),
		Rand:     chance.Always{Duration: 2},
		Recorder: dispatch.RecorderFunc(func(m dispatch.Movement) { kinds = append(kinds, m.Kind) }),
	})

	a.Run(0)
	if n.Switch(1).IsFunctional() {
		t.Fatal("switch should have failed")
	}
	if diff := cmp.Diff([]network.SwitchID{1}, a.FailedSwitches()); diff != "" {
		t.Errorf("failed switches (-want +got):\n%s", diff)
	}
	if l.CurrentTrack() != 2 {
		t.Errorf("train crossed a failed switch")
	}

	a.Run(1)
	if n.Switch(1).IsFunctional() {
		t.Error("switch restored too early")
	}

	a.Run(2)
	critical := logs.FilterField(zap.String("severity", "critical")).AllUntimed()
	var got []string
	for _, e := range critical {
		got = append(got, e.Message)
	}
	want := []string{
		"Switch 1 failure at tick 0",
		"Switch 1 restored at tick 2",
		"Switch 1 failure at tick 2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("critical log (-want +got):\n%s", diff)
	}
	wantKinds := []dispatch.MovementKind{dispatch.KindSwitchFailure, dispatch.KindSwitchRestored, dispatch.KindSwitchFailure}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("recorded kinds (-want +got):\n%s", diff)
	}
}

func TestCentralRun(t *testing.T) {
	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	subway := New(n, []transit.TrainLine{lineG}, []*train.Train{g}, Options{})
	lirr := New(network.New(transit.SystemLIRR), nil, nil, Options{})

	c := NewCentral(subway, lirr, New(n, nil, nil, Options{}))
	if len(c.Agencies()) != 2 {
		t.Fatalf("duplicate system should be ignored, got %d agencies", len(c.Agencies()))
	}
	if c.Agency(transit.SystemSubway) != subway {
		t.Error("Agency(subway) returned the wrong agency")
	}

	ran, err := c.Run(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if ran != 3 {
		t.Errorf("ran %d ticks, expected 3", ran)
	}
	if g.CurrentTrack() != 8 {
		t.Errorf("train on %d after three ticks, expected 8", g.CurrentTrack())
	}
}

func TestCentralStops(t *testing.T) {
	idle := NewCentral(New(network.New(transit.SystemSubway), nil, nil, Options{}))
	if ran, err := idle.Run(context.Background(), 10); err != nil || ran != 0 {
		t.Errorf("idle Run = %d, %v; expected 0, nil", ran, err)
	}

	n := buildJunction(t)
	g := spawnAt(t, n, 10, lineG, 1)
	c := NewCentral(New(n, []transit.TrainLine{lineG}, []*train.Train{g}, Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Run error = %v, expected context.Canceled", err)
	}
}

func TestUnscheduledLineStaysIdle(t *testing.T) {
	// G runs yard to yard over 1 → 2 → 3; L serves a station but has no runs
	n := network.New(transit.SystemSubway)
	must := func(_ any, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(n.AddStation(1, "Court Sq", true, lineG))
	must(n.AddStation(2, "Church Av", true, lineG))
	must(n.AddStation(3, "Lorimer St", false, lineL))
	must(n.AddPlatform(1, 1, 1, transit.Downtown, lineG))
	must(n.AddTrack(2, 1, lineG))
	must(n.AddPlatform(3, 1, 2, transit.Downtown, lineG))
	must(n.AddPlatform(4, 1, 3, transit.Downtown, lineL))
	must(nil, n.Connect(1, 2))
	must(nil, n.Connect(2, 3))

	doc, err := schedule.Parse(strings.NewReader(`{"train_lines": {"G": {"trains": [
		{"train_id": 7, "direction": "downtown", "headsign": "Church Av", "schedule": [
			{"station_id": 1, "station_name": "Court Sq", "arrival_tick": -1, "departure_tick": 0},
			{"station_id": 2, "station_name": "Church Av", "arrival_tick": 2, "departure_tick": -1}
		]}
	]}}}`))
	if err != nil {
		t.Fatal(err)
	}

	a := New(n, []transit.TrainLine{lineG, lineL}, nil, Options{})
	if got := a.LoadSchedule(doc); got != 2 {
		t.Fatalf("loaded %d events, expected 2", got)
	}
	if a.Dispatch(lineL).IsActive() {
		t.Error("line L has nothing scheduled and should be inactive")
	}
	if !a.Dispatch(lineG).IsActive() || !a.IsActive() {
		t.Error("line G has a run pending and should be active")
	}

	ran, err := NewCentral(a).Run(context.Background(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if ran != 3 {
		t.Errorf("ran %d ticks, expected 3 (despawn at tick 2)", ran)
	}
}
