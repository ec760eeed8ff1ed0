// Package dispatch controls the trains of a single line.
//
// Every tick runs in two phases. Authorize proposes moves: it spawns due
// trains at yards, clears signals for uncontested moves and files switch
// requests with the arbiter. After the arbiter has resolved all switches,
// Execute commits the authorized moves and granted switch routes, matches
// arrivals and departures against the schedule and updates lateness.
package dispatch

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mini-rodalies-3d/railsim/internal/chance"
	"github.com/mini-rodalies-3d/railsim/internal/logging"
	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/schedule"
	"github.com/mini-rodalies-3d/railsim/internal/train"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Options carries the collaborators of a Dispatch. Zero values are replaced
// with no-op implementations and DefaultParams.
type Options struct {
	Logger   *logging.Logger
	Rand     chance.Source
	Recorder Recorder
	Params   *Params
}

// Dispatch runs one train line
type Dispatch struct {
	line    transit.TrainLine
	net     *network.Network
	arbiter SwitchArbiter
	log     *logging.Logger
	rng     chance.Source
	rec     Recorder
	params  Params

	stations []*network.Station
	trains   []*train.Train
	byID     map[network.TrainID]*train.Train
	schedule map[network.StationID]*schedule.Queues

	authorized    []Move
	failedSignals []network.TrackID
	active        bool
}

// New creates a dispatcher for the line. Trains that do not run on the line
// are ignored; more trains can be created later from the schedule.
func New(line transit.TrainLine, net *network.Network, arbiter SwitchArbiter, trains []*train.Train, opts Options) *Dispatch {
	d := &Dispatch{
		line:     line,
		net:      net,
		arbiter:  arbiter,
		log:      opts.Logger,
		rng:      opts.Rand,
		rec:      opts.Recorder,
		params:   DefaultParams(),
		stations: net.StationsForLine(line),
		byID:     make(map[network.TrainID]*train.Train),
		schedule: make(map[network.StationID]*schedule.Queues),
		active:   true,
	}
	if d.log == nil {
		d.log = logging.NewNop()
	}
	d.log = d.log.With(zap.String("line", line.String()))
	if d.rng == nil {
		d.rng = chance.Never{}
	}
	if d.rec == nil {
		d.rec = nopRecorder{}
	}
	if opts.Params != nil {
		d.params = *opts.Params
	}
	for _, st := range d.stations {
		d.schedule[st.ID()] = &schedule.Queues{}
	}
	for _, tr := range trains {
		if tr.Line() == line {
			d.addTrain(tr)
		}
	}
	return d
}

func (d *Dispatch) addTrain(tr *train.Train) {
	if _, ok := d.byID[tr.ID()]; ok {
		return
	}
	d.byID[tr.ID()] = tr
	i, _ := slices.BinarySearchFunc(d.trains, tr.ID(), func(t *train.Train, id network.TrainID) int {
		return cmp.Compare(t.ID(), id)
	})
	d.trains = slices.Insert(d.trains, i, tr)
}

func (d *Dispatch) Line() transit.TrainLine               { return d.line }
func (d *Dispatch) Network() *network.Network             { return d.net }
func (d *Dispatch) Stations() []*network.Station          { return slices.Clone(d.stations) }
func (d *Dispatch) Trains() []*train.Train                { return slices.Clone(d.trains) }
func (d *Dispatch) Authorized() []Move                    { return slices.Clone(d.authorized) }
func (d *Dispatch) Train(id network.TrainID) *train.Train { return d.byID[id] }

// Schedule returns the pending events of a station on this line
func (d *Dispatch) Schedule(station network.StationID) *schedule.Queues {
	return d.schedule[station]
}

// IsActive reports whether the line still has trains to run
func (d *Dispatch) IsActive() bool { return d.active }

// Pending counts trains that are in service or still waiting for a yard departure
func (d *Dispatch) Pending() int {
	n := 0
	for _, tr := range d.trains {
		switch {
		case tr.IsActive():
			n++
		case tr.Status() == transit.Idle && d.awaitingSpawn(tr.ID()):
			n++
		}
	}
	return n
}

func (d *Dispatch) awaitingSpawn(id network.TrainID) bool {
	for _, st := range d.stations {
		if st.IsYard() && d.schedule[st.ID()].Departures.HasTrain(id) {
			return true
		}
	}
	return false
}

// LoadSchedule files the planned events of this line. Runs with an invalid
// direction and events at stations off the line are skipped with a warning.
// Trains named by the schedule that are not yet known are created idle. A
// line left with nothing to run is inactive from the start.
func (d *Dispatch) LoadSchedule(doc *schedule.Document) int {
	loaded := d.fileSchedule(doc)
	d.active = d.Pending() > 0
	return loaded
}

func (d *Dispatch) fileSchedule(doc *schedule.Document) int {
	ls, ok := doc.Line(d.line)
	if !ok {
		d.log.Warn(fmt.Sprintf("No schedule found for line %s", d.line))
		return 0
	}

	loaded := 0
	for _, run := range ls.Trains {
		events, err := run.Events()
		if err != nil {
			d.log.Warn("Skipping scheduled run", zap.Error(err))
			continue
		}
		if run.TrainID == network.NoTrain {
			d.log.Warn("Skipping scheduled run without train id")
			continue
		}

		tr, ok := d.byID[run.TrainID]
		if !ok {
			dir := transit.NoDirection
			if len(events) > 0 {
				dir = events[0].Direction
			}
			tr = train.New(d.net, run.TrainID, d.line, transit.Local, run.Headsign, dir)
			d.addTrain(tr)
		}
		if stops := run.Stations(); len(stops) > 1 {
			tr.SetRoute(stops[1:])
		}

		for _, ev := range events {
			q, ok := d.schedule[ev.StationID]
			if !ok {
				d.log.Warn(fmt.Sprintf("Train %d is scheduled at station %d which is not on line %s", ev.TrainID, ev.StationID, d.line))
				continue
			}
			q.Add(ev)
			loaded++
		}
	}
	return loaded
}

// Authorize is the first phase of a tick
func (d *Dispatch) Authorize(tick int) {
	d.authorized = d.authorized[:0]
	spawned := d.handleSpawns(tick)

	for _, tr := range d.trains {
		if !tr.IsActive() || slices.Contains(spawned, tr.ID()) || !tr.RequestMovement() {
			continue
		}

		cur := tr.CurrentTrack()
		next := d.net.NextTrack(cur, d.line)
		if next == network.NoTrack {
			d.log.Warn(fmt.Sprintf("No next track available to authorize movement for train %d", tr.ID()),
				zap.Int("track", int(cur)), zap.Int("tick", tick))
			continue
		}
		nt := d.net.Track(next)
		if nt.IsOccupied() {
			continue
		}

		if sw := d.net.ProtectingSwitch(cur, next); sw != network.NoSwitch {
			d.arbiter.RequestSwitch(SwitchRequest{
				Train:       tr,
				Switch:      sw,
				From:        cur,
				To:          next,
				Priority:    max(0, tr.Lateness()),
				RequestTick: tick,
				Dispatch:    d,
			})
			continue
		}

		sig := nt.Signal()
		if !sig.IsFunctional() {
			continue
		}
		if d.rng.Roll(d.params.SignalFailureProbability) {
			d.failSignal(tick, nt)
			continue
		}
		if d.HandleSignalState(tick, next, false) == transit.Green {
			d.authorized = append(d.authorized, Move{Train: tr, To: next})
		}
	}
}

// Execute is the second phase of a tick
func (d *Dispatch) Execute(tick int) {
	d.repairSignals(tick)

	for _, g := range d.arbiter.GrantedLinks(d) {
		d.HandleSignalState(tick, g.To, false)
		d.authorized = append(d.authorized, Move{Train: g.Train, To: g.To})
	}

	for _, m := range d.authorized {
		moved := m.Train.MoveToTrack(m.To)
		d.HandleSignalState(tick, m.To, true)
		if !moved {
			continue
		}
		switch m.Train.Status() {
		case transit.Arriving:
			d.handleArrival(tick, m.Train)
		case transit.Departing:
			d.handleDeparture(tick, m.Train)
		}
	}
}

// HandleSignalState derives and applies the aspect of the signal protecting
// a track: red when forced, occupied or out of service, yellow when either of the next two
// tracks along the line is occupied, otherwise green.
func (d *Dispatch) HandleSignalState(tick int, id network.TrackID, forced bool) transit.SignalState {
	t := d.net.Track(id)
	if t == nil {
		return transit.Red
	}

	state := transit.Green
	if forced || t.IsOccupied() || !t.Signal().IsFunctional() {
		state = transit.Red
	} else if next := d.net.NextTrack(id, d.line); next != network.NoTrack {
		if d.net.Track(next).IsOccupied() {
			state = transit.Yellow
		} else if after := d.net.NextTrack(next, d.line); after != network.NoTrack && d.net.Track(after).IsOccupied() {
			state = transit.Yellow
		}
	}

	if t.Signal().ChangeState(state) {
		d.log.SignalChange(tick, t.Signal().ID(), state)
	}
	return state
}

// handleSpawns puts idle trains on yard platforms for every due departure.
// Events that cannot be serviced yet stay queued for a later tick.
func (d *Dispatch) handleSpawns(tick int) []network.TrainID {
	var spawned []network.TrainID
	for _, yard := range d.stations {
		if !yard.IsYard() {
			continue
		}
		q := d.schedule[yard.ID()]
		for _, ev := range q.Departures.Due(tick) {
			tr := d.byID[ev.TrainID]
			if tr == nil || tr.Status() != transit.Idle {
				continue
			}
			platform, ok := yard.FindAvailablePlatform(ev.Direction)
			if !ok {
				continue
			}
			if d.HandleSignalState(tick, platform.ID(), false) != transit.Green || !tr.Spawn(platform.ID()) {
				continue
			}
			d.HandleSignalState(tick, platform.ID(), true)
			q.Departures.Remove(ev)
			spawned = append(spawned, tr.ID())
			tr.SetLateness(tick - ev.Tick)

			d.log.Spawn(tick, ev.Tick, int64(tr.ID()), ev.Direction)
			d.record(Movement{
				Tick: tick, Kind: KindSpawn, Train: tr.ID(),
				Station: yard.ID(), StationName: yard.Name(), Track: platform.ID(),
				PlannedTick: ev.Tick, Lateness: tick - ev.Tick, Scheduled: true,
			})
		}
	}
	return spawned
}

func (d *Dispatch) handleArrival(tick int, tr *train.Train) {
	platform := d.net.Track(tr.CurrentTrack())
	st := d.net.Station(platform.Station())
	if st == nil {
		return
	}

	planned, scheduled := schedule.NotApplicable, false
	if q := d.schedule[st.ID()]; q != nil {
		if ev, ok := q.Arrivals.PopTrain(tr.ID()); ok {
			planned, scheduled = ev.Tick, true
			tr.SetLateness(tick - ev.Tick)
		}
	}
	if !scheduled {
		d.log.Warn(fmt.Sprintf("Non-scheduled arrival of train %d at station %s", tr.ID(), st.Name()),
			zap.Int("tick", tick))
	}

	m := Movement{
		Tick: tick, Train: tr.ID(), Station: st.ID(), StationName: st.Name(),
		Track: platform.ID(), PlannedTick: planned, Lateness: tr.Lateness(), Scheduled: scheduled,
	}

	if st.IsYard() {
		tr.Despawn()
		d.log.Despawn(tick, plannedOr(planned, tick), int64(tr.ID()), tr.Direction())
		m.Kind = KindDespawn
		d.record(m)
		if d.Pending() == 0 {
			d.active = false
			d.log.Info(fmt.Sprintf("All trains of line %s are out of service at tick %d", d.line, tick))
		}
		return
	}

	d.log.Arrival(tick, plannedOr(planned, tick), int64(tr.ID()), st.Name(), int(platform.ID()))
	m.Kind = KindArrival
	d.record(m)

	if d.rng.Roll(d.params.PlatformDelayProbability) {
		extra := d.rng.Ticks(d.params.MaxDelay)
		tr.AddDwell(extra)
		d.log.Info(fmt.Sprintf("Train %d held at station %s for %d extra ticks", tr.ID(), st.Name(), extra))
		m.Kind, m.Ticks = KindPlatformDelay, extra
		d.record(m)
	}
}

func (d *Dispatch) handleDeparture(tick int, tr *train.Train) {
	platform := d.net.Track(tr.PreviousTrack())
	if platform == nil || !platform.IsPlatform() {
		return
	}
	st := d.net.Station(platform.Station())
	if st == nil || st.IsYard() {
		return
	}

	q := d.schedule[st.ID()]
	if q == nil {
		return
	}
	ev, ok := q.Departures.PopTrain(tr.ID())
	if !ok {
		d.log.Warn(fmt.Sprintf("Non-scheduled departure of train %d from station %s", tr.ID(), st.Name()),
			zap.Int("tick", tick))
		d.record(Movement{
			Tick: tick, Kind: KindDeparture, Train: tr.ID(), Station: st.ID(), StationName: st.Name(),
			Track: platform.ID(), PlannedTick: schedule.NotApplicable, Lateness: tr.Lateness(),
		})
		return
	}

	tr.SetLateness(tick - ev.Tick)
	d.log.Departure(tick, ev.Tick, int64(tr.ID()), st.Name(), int(platform.ID()))
	d.record(Movement{
		Tick: tick, Kind: KindDeparture, Train: tr.ID(), Station: st.ID(), StationName: st.Name(),
		Track: platform.ID(), PlannedTick: ev.Tick, Lateness: tick - ev.Tick, Scheduled: true,
	})
}

func (d *Dispatch) failSignal(tick int, t *network.Track) {
	ticks := d.rng.Ticks(d.params.MaxDelay)
	t.Signal().SetFailure(ticks)
	d.HandleSignalState(tick, t.ID(), true)
	if !slices.Contains(d.failedSignals, t.ID()) {
		d.failedSignals = append(d.failedSignals, t.ID())
	}
	d.log.Critical(fmt.Sprintf("Signal %d failure at tick %d", t.Signal().ID(), tick), zap.Int("repair_ticks", ticks))
	d.record(Movement{Tick: tick, Kind: KindSignalFailure, Track: t.ID(), PlannedTick: schedule.NotApplicable, Ticks: ticks})
}

func (d *Dispatch) repairSignals(tick int) {
	d.failedSignals = slices.DeleteFunc(d.failedSignals, func(id network.TrackID) bool {
		sig := d.net.Track(id).Signal()
		if !sig.UpdateRepair() {
			return false
		}
		d.log.Critical(fmt.Sprintf("Signal %d restored at tick %d", sig.ID(), tick))
		d.record(Movement{Tick: tick, Kind: KindSignalRestored, Track: id, PlannedTick: schedule.NotApplicable})
		return true
	})
}

// FailedSignals returns the tracks whose signal this dispatcher has taken out of service
func (d *Dispatch) FailedSignals() []network.TrackID {
	return slices.Clone(d.failedSignals)
}

func (d *Dispatch) record(m Movement) {
	m.System = d.net.System()
	m.Line = d.line
	d.rec.Record(m)
}

func plannedOr(planned, tick int) int {
	if planned == schedule.NotApplicable {
		return tick
	}
	return planned
}
