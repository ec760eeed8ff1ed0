// Package feed exports simulation snapshots as GTFS-realtime.
package feed

import (
	"fmt"
	"strconv"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/mini-rodalies-3d/railsim/internal/models"
	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Options controls how ticks map to wall-clock values in the feed
type Options struct {
	Epoch       time.Time     // wall-clock time of tick 0
	TickSeconds time.Duration // wall-clock length of one tick
}

// DefaultOptions maps one tick to one minute
func DefaultOptions() Options {
	return Options{TickSeconds: time.Minute}
}

// EntityID identifies a train across systems, e.g. "subway-7"
func EntityID(t models.Train) string {
	return fmt.Sprintf("%s-%d", t.System, t.TrainID)
}

// Build converts a snapshot into a full-dataset FeedMessage with one
// TripUpdate and one VehiclePosition entity per active train
func Build(snap *models.Tick, opts Options) *gtfs.FeedMessage {
	if opts.TickSeconds <= 0 {
		opts.TickSeconds = time.Minute
	}
	ts := opts.Epoch.Add(time.Duration(snap.Tick) * opts.TickSeconds)

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(ts.Unix())),
		},
	}

	for _, t := range snap.ActiveTrains() {
		id := EntityID(t)
		trip := &gtfs.TripDescriptor{
			TripId:      proto.String(id),
			RouteId:     proto.String(t.Line),
			DirectionId: proto.Uint32(directionID(t.Direction)),
		}
		vehicle := &gtfs.VehicleDescriptor{
			Id:    proto.String(id),
			Label: proto.String(t.Headsign),
		}

		update := &gtfs.TripUpdate{Trip: trip, Vehicle: vehicle}
		if t.Lateness != nil {
			update.Delay = proto.Int32(int32(time.Duration(*t.Lateness) * opts.TickSeconds / time.Second))
		}
		if t.NextStopID != nil {
			stu := &gtfs.TripUpdate_StopTimeUpdate{StopId: proto.String(strconv.FormatInt(*t.NextStopID, 10))}
			if update.Delay != nil {
				stu.Arrival = &gtfs.TripUpdate_StopTimeEvent{Delay: update.Delay}
			}
			update.StopTimeUpdate = append(update.StopTimeUpdate, stu)
		}

		position := &gtfs.VehiclePosition{
			Trip:          trip,
			Vehicle:       vehicle,
			CurrentStatus: stopStatus(t).Enum(),
			Timestamp:     proto.Uint64(uint64(ts.Unix())),
		}
		switch {
		case t.StationID != nil:
			position.StopId = proto.String(strconv.FormatInt(*t.StationID, 10))
		case t.NextStopID != nil:
			position.StopId = proto.String(strconv.FormatInt(*t.NextStopID, 10))
		}

		msg.Entity = append(msg.Entity,
			&gtfs.FeedEntity{Id: proto.String("tu:" + id), TripUpdate: update},
			&gtfs.FeedEntity{Id: proto.String("vp:" + id), Vehicle: position},
		)
	}
	return msg
}

// Marshal builds and encodes the feed
func Marshal(snap *models.Tick, opts Options) ([]byte, error) {
	b, err := proto.Marshal(Build(snap, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return b, nil
}

// directionID is the index of the direction within its system's pair
func directionID(dir string) uint32 {
	d, err := transit.ParseDirection(dir)
	if err != nil {
		return 0
	}
	if d.System().Directions()[1] == d {
		return 1
	}
	return 0
}

func stopStatus(t models.Train) gtfs.VehiclePosition_VehicleStopStatus {
	switch {
	case t.StationID != nil:
		return gtfs.VehiclePosition_STOPPED_AT
	case t.Status == transit.Arriving.String():
		return gtfs.VehiclePosition_INCOMING_AT
	}
	return gtfs.VehiclePosition_IN_TRANSIT_TO
}
