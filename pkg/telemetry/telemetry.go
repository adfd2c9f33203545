// Package telemetry defines the flat per-poll view of the simulator and the
// provider boundary the capture loop reads from.
package telemetry

// Sample is one polled snapshot of the car state, normalized units. Samples
// have no identity beyond their position in the owning lap.
type Sample struct {
	Time               float64 `json:"time"`
	LapDist            float64 `json:"lap_dist"`
	LapDistPct         float64 `json:"lap_dist_pct"`
	Speed              float64 `json:"speed"`
	Throttle           float64 `json:"throttle"`
	Brake              float64 `json:"brake"`
	Steering           float64 `json:"steering"`
	Gear               int     `json:"gear"`
	RPM                float64 `json:"rpm"`
	LatAccel           float64 `json:"lat_accel"`
	LongAccel          float64 `json:"long_accel"`
	YawRate            float64 `json:"yaw_rate"`
	SteeringWheelAngle float64 `json:"steering_wheel_angle"`
}

// Snapshot is everything a single poll yields. The sim may omit any of the
// pointer fields on a given poll; segmentation is deferred for that cycle.
type Snapshot struct {
	SessionNum  *int
	Lap         *int
	LastLapTime *float64
	Sample      Sample
}

// SessionMeta is the best-effort session metadata read from the sim when a
// new session is detected.
type SessionMeta struct {
	TrackName     string
	TrackConfig   string
	CarName       string
	DriverName    string
	SessionTypeID int
	SessionNum    int
}

// Provider exposes exactly the fields the capture loop consumes, so the
// segmenter and store can be driven by synthetic sequences in tests.
type Provider interface {
	// Connected reports whether the sim is currently reachable.
	Connected() bool
	// Telemetry returns the latest snapshot, or ok=false when none is
	// available this cycle.
	Telemetry() (Snapshot, bool)
	// SessionMeta returns the current session metadata, or ok=false when the
	// sim has not published it yet.
	SessionMeta() (SessionMeta, bool)
	Close() error
}
