// Package control owns the dispatchers of a transit system and arbitrates the
// switches they share.
package control

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/chance"
	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/schedule"
	"github.com/mini-rodalies-3d/railsim/internal/train"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Params tunes failure injection for an agency and its dispatchers
type Params struct {
	Dispatch                 dispatch.Params
	SwitchFailureProbability float64
}

// DefaultParams returns the standard injection rates
func DefaultParams() Params {
	return Params{
		Dispatch:                 dispatch.DefaultParams(),
		SwitchFailureProbability: dispatch.SwitchFailureProbability,
	}
}

// Options carries the collaborators shared by an agency and its dispatchers
type Options struct {
	Logger   *logging.Logger
	Rand     chance.Source
	Recorder dispatch.Recorder
	Params   *Params
}

type request struct {
	dispatch.SwitchRequest
	effective int
	seq       uint64
}

// Agency controls every line of one transit system. It implements
// dispatch.SwitchArbiter for the dispatchers it creates.
type Agency struct {
	system transit.System
	net    *network.Network
	log    *logging.Logger
	rng    chance.Source
	rec    dispatch.Recorder
	params Params

	dispatchers []*dispatch.Dispatch
	byLine      map[transit.TrainLine]*dispatch.Dispatch

	pending map[network.SwitchID][]*request
	byTrain map[network.TrainID]*request
	granted map[*dispatch.Dispatch][]dispatch.Grant
	failed  []network.SwitchID
	seq     uint64
}

// New creates an agency for the network's system with one dispatcher per line
func New(net *network.Network, lines []transit.TrainLine, trains []*train.Train, opts Options) *Agency {
	a := &Agency{
		system:  net.System(),
		net:     net,
		log:     opts.Logger,
		rng:     opts.Rand,
		rec:     opts.Recorder,
		params:  DefaultParams(),
		byLine:  make(map[transit.TrainLine]*dispatch.Dispatch),
		pending: make(map[network.SwitchID][]*request),
		byTrain: make(map[network.TrainID]*request),
		granted: make(map[*dispatch.Dispatch][]dispatch.Grant),
	}
	if a.log == nil {
		a.log = logging.NewNop()
	}
	a.log = a.log.With(zap.String("system", a.system.String()))
	if a.rng == nil {
		a.rng = chance.Never{}
	}
	if a.rec == nil {
		a.rec = dispatch.RecorderFunc(func(dispatch.Movement) {})
	}
	if opts.Params != nil {
		a.params = *opts.Params
	}

	dopts := dispatch.Options{Logger: a.log, Rand: a.rng, Recorder: a.rec, Params: &a.params.Dispatch}
	for _, line := range lines {
		if _, ok := a.byLine[line]; ok || line.System != a.system {
			continue
		}
		d := dispatch.New(line, net, a, trains, dopts)
		a.byLine[line] = d
		a.dispatchers = append(a.dispatchers, d)
	}
	return a
}

func (a *Agency) System() transit.System    { return a.system }
func (a *Agency) Network() *network.Network { return a.net }

// Dispatch returns the dispatcher of a line, or nil
func (a *Agency) Dispatch(line transit.TrainLine) *dispatch.Dispatch { return a.byLine[line] }

// Dispatchers returns the dispatchers in creation order
func (a *Agency) Dispatchers() []*dispatch.Dispatch { return slices.Clone(a.dispatchers) }

// IsActive reports whether any line still has trains to run
func (a *Agency) IsActive() bool {
	return lo.SomeBy(a.dispatchers, func(d *dispatch.Dispatch) bool { return d.IsActive() })
}

// LoadSchedule hands the document to every dispatcher and returns the number
// of events queued
func (a *Agency) LoadSchedule(doc *schedule.Document) int {
	return lo.SumBy(a.dispatchers, func(d *dispatch.Dispatch) int { return d.LoadSchedule(doc) })
}

// Trains returns every train known to the agency's dispatchers
func (a *Agency) Trains() []*train.Train {
	return lo.FlatMap(a.dispatchers, func(d *dispatch.Dispatch, _ int) []*train.Train { return d.Trains() })
}

// RequestSwitch queues a request. A train holds at most one live request:
// asking again for the same switch keeps the original request tick and ages
// the priority by the ticks waited, asking for another switch cancels the
// previous request.
func (a *Agency) RequestSwitch(req dispatch.SwitchRequest) {
	effective := req.Priority
	if old, ok := a.byTrain[req.Train.ID()]; ok {
		a.remove(old)
		if old.Switch == req.Switch {
			effective = req.Priority + (req.RequestTick - old.RequestTick)
			req.RequestTick = old.RequestTick
		}
	}

	a.seq++
	r := &request{SwitchRequest: req, effective: effective, seq: a.seq}
	q := a.pending[req.Switch]
	i, _ := slices.BinarySearchFunc(q, r, compareRequests)
	a.pending[req.Switch] = slices.Insert(q, i, r)
	a.byTrain[req.Train.ID()] = r
}

// higher effective priority first, then older
func compareRequests(x, y *request) int {
	if c := cmp.Compare(y.effective, x.effective); c != 0 {
		return c
	}
	return cmp.Compare(x.seq, y.seq)
}

func (a *Agency) remove(r *request) {
	q := slices.DeleteFunc(a.pending[r.Switch], func(o *request) bool { return o == r })
	if len(q) == 0 {
		delete(a.pending, r.Switch)
	} else {
		a.pending[r.Switch] = q
	}
	if a.byTrain[r.Train.ID()] == r {
		delete(a.byTrain, r.Train.ID())
	}
}

// EffectivePriority returns the aged priority of the train's live request
func (a *Agency) EffectivePriority(id network.TrainID) (int, bool) {
	r, ok := a.byTrain[id]
	if !ok {
		return 0, false
	}
	return r.effective, true
}

// PendingRequests returns the number of queued requests for a switch
func (a *Agency) PendingRequests(sw network.SwitchID) int { return len(a.pending[sw]) }

// ResolveSwitches awards at most one request per switch. Failed switches are
// skipped, a functional switch may fail on the spot, and stale requests whose
// train left its approach track or went out of service are dropped.
func (a *Agency) ResolveSwitches(tick int) {
	clear(a.granted)

	ids := lo.Keys(a.pending)
	slices.Sort(ids)
	for _, id := range ids {
		sw := a.net.Switch(id)
		if sw == nil || !sw.IsFunctional() {
			continue
		}
		if a.rng.Roll(a.params.SwitchFailureProbability) {
			a.failSwitch(tick, sw)
			continue
		}

		// only the first live request is considered; if its route cannot be
		// set it stays queued and nobody else is granted this tick
		for _, r := range slices.Clone(a.pending[id]) {
			if !r.Train.IsActive() || r.Train.CurrentTrack() != r.From {
				a.remove(r)
				continue
			}
			if sw.SetLink(r.From, r.To) {
				a.granted[r.Dispatch] = append(a.granted[r.Dispatch], dispatch.Grant{Train: r.Train, To: r.To})
				a.remove(r)
			}
			break
		}
	}
}

// GrantedLinks returns the grants awarded to a dispatcher in the last resolution
func (a *Agency) GrantedLinks(d *dispatch.Dispatch) []dispatch.Grant {
	return slices.Clone(a.granted[d])
}

// FailedSwitches returns the switches currently under repair
func (a *Agency) FailedSwitches() []network.SwitchID { return slices.Clone(a.failed) }

func (a *Agency) failSwitch(tick int, sw *network.Switch) {
	ticks := max(1, a.rng.Ticks(a.params.Dispatch.MaxDelay))
	sw.SetFailure(ticks)
	if !slices.Contains(a.failed, sw.ID()) {
		a.failed = append(a.failed, sw.ID())
	}
	a.log.Critical(fmt.Sprintf("Switch %d failure at tick %d", sw.ID(), tick), zap.Int("repair_ticks", ticks))
	a.rec.Record(dispatch.Movement{
		Tick: tick, System: a.system, Kind: dispatch.KindSwitchFailure, Switch: sw.ID(),
		PlannedTick: schedule.NotApplicable, Ticks: ticks,
	})
}

func (a *Agency) repairSwitches(tick int) {
	a.failed = slices.DeleteFunc(a.failed, func(id network.SwitchID) bool {
		if !a.net.Switch(id).UpdateRepair() {
			return false
		}
		a.log.Critical(fmt.Sprintf("Switch %d restored at tick %d", id, tick))
		a.rec.Record(dispatch.Movement{
			Tick: tick, System: a.system, Kind: dispatch.KindSwitchRestored, Switch: id,
			PlannedTick: schedule.NotApplicable,
		})
		return true
	})
}

// Run advances the agency by one tick: switch repairs, authorization on every
// line, one switch resolution pass, then execution on every line.
func (a *Agency) Run(tick int) {
	a.repairSwitches(tick)
	for _, d := range a.dispatchers {
		d.Authorize(tick)
	}
	a.ResolveSwitches(tick)
	for _, d := range a.dispatchers {
		d.Execute(tick)
	}
}
