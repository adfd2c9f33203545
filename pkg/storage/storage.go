// Package storage accumulates laps under the active session and persists
// each finished session as one JSON record under
// <dataDir>/<Track_Name>/<Session_Type>/<timestamp>_<id8>.json.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"iracingtelemetry/pkg/session"
	"iracingtelemetry/pkg/telemetry"
)

const DefaultDataDir = "data/sessions"

// Store owns the in-memory session being captured. It is not safe for
// concurrent use; exactly one capture goroutine mutates it.
type Store struct {
	baseDir   string
	sess      *session.Session
	openLap   *session.Lap
	createdAt time.Time
}

func NewStore(baseDir string) *Store {
	if baseDir == "" {
		baseDir = DefaultDataDir
	}
	return &Store{baseDir: baseDir}
}

func (s *Store) BaseDir() string {
	return s.baseDir
}

// Active reports whether a session is currently open.
func (s *Store) Active() bool {
	return s.sess != nil
}

// Session exposes the in-progress session record for summaries. Callers must
// not mutate it.
func (s *Store) Session() *session.Session {
	return s.sess
}

// Initialize opens a fresh session with lap 0 open and returns its id.
func (s *Store) Initialize(meta telemetry.SessionMeta) string {
	id := uuid.NewString()
	now := time.Now()
	sessionType := session.Type(meta.SessionTypeID)

	s.createdAt = now
	s.sess = &session.Session{
		Metadata: session.Metadata{
			SessionID:     id,
			Timestamp:     now.Format(time.RFC3339),
			TrackName:     meta.TrackName,
			TrackConfig:   meta.TrackConfig,
			CarName:       meta.CarName,
			SessionType:   sessionType.String(),
			SessionTypeID: meta.SessionTypeID,
			DriverName:    meta.DriverName,
			TotalLaps:     0,
		},
		Laps: []session.Lap{},
	}
	s.startNewLap(0)
	return id
}

func (s *Store) startNewLap(lapNumber int) {
	s.openLap = &session.Lap{
		LapNumber: lapNumber,
		Telemetry: []telemetry.Sample{},
	}
}

// AddSample appends one sample to the open lap.
func (s *Store) AddSample(sample telemetry.Sample) {
	if s.openLap == nil {
		return
	}
	s.openLap.Telemetry = append(s.openLap.Telemetry, sample)
}

// CompleteLap closes the open lap with the given time (nil when the reported
// duration was invalid), appends it to the session and opens the next lap.
// It returns the closed lap's number, or -1 when no lap is open.
func (s *Store) CompleteLap(lapTime *float64) int {
	if s.sess == nil || s.openLap == nil {
		return -1
	}
	s.openLap.LapTime = lapTime
	s.sess.Laps = append(s.sess.Laps, *s.openLap)
	s.sess.Metadata.TotalLaps = len(s.sess.Laps)

	completed := s.openLap.LapNumber
	s.startNewLap(completed + 1)
	return completed
}

// Finalize writes the session record to disk and returns its path. An empty
// path with a nil error means there was nothing to persist. The open lap is
// included, without a lap time, when includeOpenLap is set and it holds at
// least one sample.
func (s *Store) Finalize(includeOpenLap bool) (string, error) {
	if s.sess == nil {
		return "", nil
	}

	if includeOpenLap && s.openLap != nil && len(s.openLap.Telemetry) > 0 {
		s.openLap.LapTime = nil
		s.sess.Laps = append(s.sess.Laps, *s.openLap)
		s.sess.Metadata.TotalLaps = len(s.sess.Laps)
		s.openLap = nil
	}

	if len(s.sess.Laps) == 0 {
		return "", nil
	}

	dir := s.sessionDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating session directory %s", dir)
	}

	path := filepath.Join(dir, s.sessionFilename())
	data, err := json.MarshalIndent(s.sess, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding session record")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing session record %s", path)
	}
	return path, nil
}

// Reset drops all in-memory session state.
func (s *Store) Reset() {
	s.sess = nil
	s.openLap = nil
	s.createdAt = time.Time{}
}

func (s *Store) sessionDir() string {
	return filepath.Join(s.baseDir,
		PathSegment(s.sess.Metadata.TrackName),
		PathSegment(s.sess.Metadata.SessionType))
}

func (s *Store) sessionFilename() string {
	stamp := s.createdAt.Format("20060102_150405")
	return stamp + "_" + s.sess.Metadata.SessionID[:8] + ".json"
}

// PathSegment makes a metadata value safe for use as a directory or file
// name component.
func PathSegment(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, "/", "-")
}
