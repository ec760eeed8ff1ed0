package sim

import (
	"cmp"
	"slices"
	"time"

	"github.com/mini-rodalies-3d/railsim/internal/control"
	"github.com/mini-rodalies-3d/railsim/internal/models"
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/train"
)

// Snapshot captures every train and switch of the central control. It must
// be called between ticks.
func Snapshot(c *control.Central, runID string, tick int) *models.Tick {
	snap := &models.Tick{
		RunID:   runID,
		Tick:    tick,
		Active:  c.IsActive(),
		TakenAt: time.Now().UTC(),
	}
	for _, a := range c.Agencies() {
		system := a.System().String()
		n := a.Network()
		for _, tr := range a.Trains() {
			snap.Trains = append(snap.Trains, trainModel(n, system, tr))
		}
		for _, sw := range n.Switches() {
			snap.Switches = append(snap.Switches, switchModel(system, sw))
		}
		for _, d := range a.Dispatchers() {
			snap.FailedSignals += len(d.FailedSignals())
		}
	}
	slices.SortFunc(snap.Trains, func(x, y models.Train) int {
		if o := cmp.Compare(x.System, y.System); o != 0 {
			return o
		}
		return cmp.Compare(x.TrainID, y.TrainID)
	})
	return snap
}

func trainModel(n *network.Network, system string, tr *train.Train) models.Train {
	m := models.Train{
		TrainID:   int64(tr.ID()),
		System:    system,
		Line:      tr.Line().Code,
		Headsign:  tr.Headsign(),
		Direction: tr.Direction().String(),
		Service:   tr.ServiceType().String(),
		Status:    tr.Status().String(),
		Dwell:     tr.Dwell(),
	}
	if tr.HasLateness() {
		l := tr.Lateness()
		m.Lateness = &l
	}
	if !tr.IsActive() {
		return m
	}

	track := int32(tr.CurrentTrack())
	m.TrackID = &track
	if t := n.Track(tr.CurrentTrack()); t != nil && t.IsPlatform() {
		if st := n.Station(t.Station()); st != nil {
			id, name := int64(st.ID()), st.Name()
			m.StationID, m.StationName = &id, &name
		}
	}
	if next, ok := tr.NextDestination(); ok {
		id := int64(next)
		m.NextStopID = &id
	}
	return m
}

func switchModel(system string, sw *network.Switch) models.Switch {
	m := models.Switch{
		SwitchID:     int32(sw.ID()),
		System:       system,
		Functional:   sw.IsFunctional(),
		FailureTimer: sw.FailureTimer(),
	}
	if from, to, ok := sw.ActiveLink(); ok {
		f, t := int32(from), int32(to)
		m.LinkFrom, m.LinkTo = &f, &t
	}
	return m
}
