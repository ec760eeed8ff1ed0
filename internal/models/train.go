package models

import "time"

// Train is the externally visible state of one simulated train at a tick
type Train struct {
	TrainID   int64  `json:"trainId"`
	System    string `json:"system"`
	Line      string `json:"line"`
	Headsign  string `json:"headsign"`
	Direction string `json:"direction"`
	Service   string `json:"service"`
	Status    string `json:"status"`

	// Position (empty while idle or out of service)
	TrackID     *int32  `json:"trackId"`
	StationID   *int64  `json:"stationId"`
	StationName *string `json:"stationName"`
	NextStopID  *int64  `json:"nextStopId"`

	// Timing
	Dwell    int  `json:"dwell"`
	Lateness *int `json:"lateness"` // ticks; nil until the train has passed a scheduled stop
}

// Switch is the externally visible state of a switch
type Switch struct {
	SwitchID     int32  `json:"switchId"`
	System       string `json:"system"`
	Functional   bool   `json:"functional"`
	FailureTimer int    `json:"failureTimer"`
	LinkFrom     *int32 `json:"linkFrom"`
	LinkTo       *int32 `json:"linkTo"`
}

// Tick is a consistent snapshot taken between two ticks
type Tick struct {
	RunID         string    `json:"runId,omitempty"`
	Tick          int       `json:"tick"`
	Active        bool      `json:"active"`
	Trains        []Train   `json:"trains"`
	Switches      []Switch  `json:"switches"`
	FailedSignals int       `json:"failedSignals"`
	TakenAt       time.Time `json:"takenAt"`
}

// ActiveTrains returns the trains currently on the network
func (t *Tick) ActiveTrains() []Train {
	var out []Train
	for _, tr := range t.Trains {
		if tr.TrackID != nil {
			out = append(out, tr)
		}
	}
	return out
}

// TrainsResponse is the response for GET /api/trains
type TrainsResponse struct {
	Trains []Train `json:"trains"`
	Count  int     `json:"count"`
	Tick   int     `json:"tick"`
}

// SwitchesResponse is the response for GET /api/switches
type SwitchesResponse struct {
	Switches []Switch `json:"switches"`
	Failed   int      `json:"failed"`
	Tick     int      `json:"tick"`
}
