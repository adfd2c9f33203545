// Package session holds the persisted data model: a session owns an ordered
// sequence of laps, each lap an ordered sequence of telemetry samples.
package session

import (
	"math"

	"iracingtelemetry/pkg/telemetry"
)

// Type is the sim's session type.
type Type int

const (
	Testing Type = iota
	Practice
	Qualifying
	Warmup
	Race
)

var typeNames = map[Type]string{
	Testing:    "Testing",
	Practice:   "Practice",
	Qualifying: "Qualifying",
	Warmup:     "Warmup",
	Race:       "Race",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Metadata is the session header. Field names match the on-disk record
// format and must not change.
type Metadata struct {
	SessionID     string `json:"session_id"`
	Timestamp     string `json:"timestamp"`
	TrackName     string `json:"track_name"`
	TrackConfig   string `json:"track_config"`
	CarName       string `json:"car_name"`
	SessionType   string `json:"session_type"`
	SessionTypeID int    `json:"session_type_id"`
	DriverName    string `json:"driver_name"`
	TotalLaps     int    `json:"total_laps"`
}

// Lap is one recorded lap. LapNumber is 0-based in storage and shown 1-based.
// LapTime is nil for an incomplete lap.
type Lap struct {
	LapNumber int                `json:"lap_number"`
	LapTime   *float64           `json:"lap_time"`
	Telemetry []telemetry.Sample `json:"telemetry"`
}

type Session struct {
	Metadata Metadata `json:"metadata"`
	Laps     []Lap    `json:"laps"`
}

// LapByNumber returns the lap with the given 0-based lap number.
func (s *Session) LapByNumber(n int) (*Lap, bool) {
	for i := range s.Laps {
		if s.Laps[i].LapNumber == n {
			return &s.Laps[i], true
		}
	}
	return nil, false
}

// BestLap returns the completed lap with the lowest positive time.
func (s *Session) BestLap() (*Lap, bool) {
	best := math.Inf(1)
	var lap *Lap
	for i := range s.Laps {
		t := s.Laps[i].LapTime
		if t != nil && *t > 0 && *t < best {
			best = *t
			lap = &s.Laps[i]
		}
	}
	return lap, lap != nil
}

// Duration is the sum of the completed lap times.
func (s *Session) Duration() float64 {
	total := 0.0
	for i := range s.Laps {
		if t := s.Laps[i].LapTime; t != nil {
			total += *t
		}
	}
	return total
}
