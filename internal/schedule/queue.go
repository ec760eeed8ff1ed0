// Package schedule holds planned arrival and departure events and the
// document format they are loaded from.
package schedule

import (
	"cmp"
	"slices"

	"github.com/mini-rodalies-3d/railsim/internal/network"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// NotApplicable marks a missing arrival (origin) or departure (terminus) tick
const NotApplicable = -1

// Event is a planned arrival or departure of one train at one station
type Event struct {
	Tick      int
	TrainID   network.TrainID
	StationID network.StationID
	Direction transit.Direction
	Type      transit.EventType

	seq uint64
}

// Queue is a multiset of events ordered by tick. Events with equal ticks keep
// insertion order.
type Queue struct {
	events []Event
	next   uint64
}

func (q *Queue) Len() int { return len(q.events) }

func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.Tick, b.Tick); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// Push inserts an event in tick order
func (q *Queue) Push(e Event) {
	e.seq = q.next
	q.next++
	i, _ := slices.BinarySearchFunc(q.events, e, compareEvents)
	q.events = slices.Insert(q.events, i, e)
}

// Peek returns the earliest event
func (q *Queue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

// Events returns a copy of the queue contents in order
func (q *Queue) Events() []Event {
	return slices.Clone(q.events)
}

// Due returns the events planned at or before tick, earliest first
func (q *Queue) Due(tick int) []Event {
	i := 0
	for i < len(q.events) && q.events[i].Tick <= tick {
		i++
	}
	return slices.Clone(q.events[:i])
}

// Remove deletes exactly the given event, as returned by Due or Peek
func (q *Queue) Remove(e Event) bool {
	i, found := slices.BinarySearchFunc(q.events, e, compareEvents)
	if !found {
		return false
	}
	q.events = slices.Delete(q.events, i, i+1)
	return true
}

// PopTrain removes and returns the earliest event of the train, regardless of tick
func (q *Queue) PopTrain(id network.TrainID) (Event, bool) {
	i := slices.IndexFunc(q.events, func(e Event) bool { return e.TrainID == id })
	if i < 0 {
		return Event{}, false
	}
	e := q.events[i]
	q.events = slices.Delete(q.events, i, i+1)
	return e, true
}

// HasTrain reports whether any event of the train remains
func (q *Queue) HasTrain(id network.TrainID) bool {
	return slices.ContainsFunc(q.events, func(e Event) bool { return e.TrainID == id })
}

// Queues are the pending events of one station
type Queues struct {
	Arrivals   Queue
	Departures Queue
}

// Add files the event into the queue matching its type
func (q *Queues) Add(e Event) {
	if e.Type == transit.Departure {
		q.Departures.Push(e)
		return
	}
	q.Arrivals.Push(e)
}

func (q *Queues) Len() int {
	return q.Arrivals.Len() + q.Departures.Len()
}
