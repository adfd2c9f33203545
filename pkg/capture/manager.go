// Package capture runs the telemetry poll loop and the session/lap
// segmentation state machine behind it.
package capture

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"iracingtelemetry/pkg/exporter"
	"iracingtelemetry/pkg/hotlaps"
	"iracingtelemetry/pkg/pubsub"
	"iracingtelemetry/pkg/session"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
)

const DefaultPollRate = 60 // Hz

// Manager owns the capture loop: one goroutine polls the provider, feeds the
// segmenter and handles session hand-over on connection loss and shutdown.
type Manager struct {
	provider     telemetry.Provider
	seg          *Segmenter
	exp          *exporter.Exporter
	leaderboard  *hotlaps.Manager
	pollInterval time.Duration
}

func NewManager(provider telemetry.Provider, store *storage.Store, exp *exporter.Exporter,
	leaderboard *hotlaps.Manager, events *pubsub.PubSub[string], pollRate int) *Manager {
	if pollRate <= 0 {
		pollRate = DefaultPollRate
	}
	return &Manager{
		provider:     provider,
		seg:          NewSegmenter(store, events),
		exp:          exp,
		leaderboard:  leaderboard,
		pollInterval: time.Second / time.Duration(pollRate),
	}
}

// Run polls until ctx is cancelled. On shutdown the active session is
// finalized with its open lap included. Only a failure to persist at all is
// returned; per-cycle errors are logged and skipped.
func (m *Manager) Run(ctx context.Context) error {
	if !m.waitForConnection(ctx) {
		return m.provider.Close()
	}

	fmt.Println("Live telemetry capture (press Ctrl-C to stop)")

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := m.finalizeSession(true)
			if closeErr := m.provider.Close(); err == nil {
				err = closeErr
			}
			return err
		case <-ticker.C:
			if err := m.poll(ctx); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) poll(ctx context.Context) error {
	if !m.provider.Connected() {
		log.Printf("Lost connection to the sim")
		if err := m.finalizeSession(true); err != nil {
			return err
		}
		m.waitForConnection(ctx)
		return nil
	}

	snap, ok := m.provider.Telemetry()
	if !ok {
		return nil
	}

	if err := m.seg.Process(snap, m.provider.SessionMeta); err != nil {
		// Gaps and missing metadata defer to the next poll; anything else
		// is logged and the loop continues.
		if !errors.Is(err, ErrTelemetryGap) && !errors.Is(err, ErrMetadataUnavailable) {
			log.Printf("Error in capture loop: %s", err)
		}
		return nil
	}

	fmt.Printf("\r%s", statusLine(snap))
	return nil
}

// waitForConnection blocks until the provider reports a connection, checking
// once per second. It returns false when ctx was cancelled first.
func (m *Manager) waitForConnection(ctx context.Context) bool {
	if m.provider.Connected() {
		return true
	}
	log.Printf("Waiting for the sim...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if m.provider.Connected() {
				log.Printf("Connected to the sim")
				return true
			}
		}
	}
}

func (m *Manager) finalizeSession(includeOpenLap bool) error {
	sess, path, err := m.seg.FinalizeAndReset(includeOpenLap)
	if err != nil {
		return errors.Wrap(err, "persisting session")
	}
	if path == "" {
		return nil
	}

	m.logSummary(sess, path)

	if m.exp != nil {
		if csvPath, err := m.exp.ExportSession(sess); err != nil {
			log.Printf("Warning: auto-export failed: %s", err)
		} else {
			log.Printf("Complete CSV: %s", csvPath)
		}
		if jsonPath, err := m.exp.CopySessionRecord(sess, path); err != nil {
			log.Printf("Warning: session copy failed: %s", err)
		} else {
			log.Printf("Session JSON: %s", jsonPath)
		}
	}

	if m.leaderboard != nil {
		if improved, err := m.leaderboard.RecordSession(sess); err != nil {
			log.Printf("Warning: hotlaps update failed: %s", err)
		} else if improved > 0 {
			log.Printf("Hotlaps leaderboard improved")
		}
	}
	return nil
}

func (m *Manager) logSummary(sess *session.Session, path string) {
	points := 0
	for _, lap := range sess.Laps {
		points += len(lap.Telemetry)
	}

	fmt.Println()
	fmt.Println("SESSION SUMMARY")
	fmt.Printf("  Total laps:       %d\n", sess.Metadata.TotalLaps)
	if best, ok := sess.BestLap(); ok {
		fmt.Printf("  Best lap time:    %.3fs\n", *best.LapTime)
	}
	fmt.Printf("  Telemetry points: %d\n", points)
	fmt.Printf("  Session data:     %s\n", path)
}

func statusLine(snap telemetry.Snapshot) string {
	s := snap.Sample

	gear := "N"
	if s.Gear < 0 {
		gear = "R"
	} else if s.Gear > 0 {
		gear = strconv.Itoa(s.Gear)
	}

	lap := 0
	if snap.Lap != nil {
		lap = *snap.Lap
	}

	return fmt.Sprintf("Throttle: %5.1f%% | Brake: %5.1f%% | Speed: %6.1f mph | Gear: %2s | Lap: %3d | LapDist: %7.1fm",
		s.Throttle*100, s.Brake*100, s.Speed*2.237, gear, lap, s.LapDist)
}
