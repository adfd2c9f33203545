package capture

// Pub/sub topics raised by the segmenter. Payloads are JSON strings produced
// with pkg/caster.
const (
	TopicSessionStarted = "session.started"
	TopicLapCompleted   = "lap.completed"
	TopicNewBest        = "lap.best"
)

type SessionStartedEvent struct {
	SessionID   string `json:"sessionId"`
	TrackName   string `json:"trackName"`
	TrackConfig string `json:"trackConfig"`
	CarName     string `json:"carName"`
	DriverName  string `json:"driverName"`
	SessionType string `json:"sessionType"`
}

type LapCompletedEvent struct {
	SessionID string `json:"sessionId"`
	// LapNumber is 0-based, as stored.
	LapNumber int      `json:"lapNumber"`
	LapTime   *float64 `json:"lapTime"`
	NewBest   bool     `json:"newBest"`
	BestTime  float64  `json:"bestTime"`
}
