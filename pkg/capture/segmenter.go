package capture

import (
	"log"
	"math"

	"github.com/pkg/errors"

	"iracingtelemetry/pkg/caster"
	"iracingtelemetry/pkg/pubsub"
	"iracingtelemetry/pkg/session"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
)

var (
	// ErrTelemetryGap means a poll yielded incomplete data; the cycle is
	// skipped with no state change.
	ErrTelemetryGap = errors.New("incomplete telemetry snapshot")
	// ErrMetadataUnavailable means a session transition is pending but the
	// sim has not published metadata yet; retried next poll.
	ErrMetadataUnavailable = errors.New("session metadata unavailable")
)

// Segmenter turns the stream of snapshots into complete laps grouped under
// sessions. All of its state is owned here so tests can construct fresh
// instances; it must only ever be driven by one goroutine.
type Segmenter struct {
	store  *storage.Store
	events *pubsub.PubSub[string]

	startedCaster caster.ChannelCaster[SessionStartedEvent]
	lapCaster     caster.ChannelCaster[LapCompletedEvent]

	sessionNum *int
	lapNum     *int
	best       float64
}

func NewSegmenter(store *storage.Store, events *pubsub.PubSub[string]) *Segmenter {
	return &Segmenter{
		store:         store,
		events:        events,
		startedCaster: caster.JSONChannelCaster[SessionStartedEvent]{},
		lapCaster:     caster.JSONChannelCaster[LapCompletedEvent]{},
	}
}

// BestLapTime returns the best completed lap time of the active session,
// or 0 when none has been set.
func (sg *Segmenter) BestLapTime() float64 {
	return sg.best
}

// Process resolves all transitions for one snapshot and then appends its
// sample to the open lap. meta is consulted only when a session has to be
// opened; if it yields nothing the transition is deferred and the sample
// dropped.
func (sg *Segmenter) Process(snap telemetry.Snapshot, meta func() (telemetry.SessionMeta, bool)) error {
	if snap.SessionNum == nil || snap.Lap == nil {
		return ErrTelemetryGap
	}

	if sg.sessionNum == nil || *snap.SessionNum != *sg.sessionNum {
		// The trailing open lap of the previous session is dropped on a
		// session change; it only survives an explicit shutdown.
		if sg.sessionNum != nil {
			if _, _, err := sg.FinalizeAndReset(false); err != nil {
				log.Printf("Error finalizing previous session: %s", err)
			}
		}
		if err := sg.openSession(meta); err != nil {
			return err
		}
	}

	if sg.lapNum == nil {
		// First sample of the session seeds the observed counter without
		// firing a completion.
		v := *snap.Lap
		sg.lapNum = &v
	} else if *snap.Lap > *sg.lapNum {
		sg.completeLap(snap.LastLapTime)
		v := *snap.Lap
		sg.lapNum = &v
	}
	// Out-of-order or repeated counters never trigger completion.

	sg.store.AddSample(snap.Sample)
	return nil
}

func (sg *Segmenter) openSession(meta func() (telemetry.SessionMeta, bool)) error {
	m, ok := meta()
	if !ok {
		return ErrMetadataUnavailable
	}

	id := sg.store.Initialize(m)
	num := m.SessionNum
	sg.sessionNum = &num
	sg.lapNum = nil
	sg.best = 0

	publish(sg.events, TopicSessionStarted, sg.startedCaster, SessionStartedEvent{
		SessionID:   id,
		TrackName:   m.TrackName,
		TrackConfig: m.TrackConfig,
		CarName:     m.CarName,
		DriverName:  m.DriverName,
		SessionType: session.Type(m.SessionTypeID).String(),
	})
	return nil
}

func (sg *Segmenter) completeLap(lastLapTime *float64) {
	// The reported duration is read at the rollover instant; anything that
	// is not a positive finite value closes the lap without a time.
	var lapTime *float64
	if lastLapTime != nil && *lastLapTime > 0 &&
		!math.IsInf(*lastLapTime, 0) && !math.IsNaN(*lastLapTime) {
		v := *lastLapTime
		lapTime = &v
	}

	completed := sg.store.CompleteLap(lapTime)
	if completed < 0 {
		return
	}

	newBest := false
	if lapTime != nil && (sg.best == 0 || *lapTime < sg.best) {
		sg.best = *lapTime
		newBest = true
	}

	ev := LapCompletedEvent{
		SessionID: sg.store.Session().Metadata.SessionID,
		LapNumber: completed,
		LapTime:   lapTime,
		NewBest:   newBest,
		BestTime:  sg.best,
	}
	publish(sg.events, TopicLapCompleted, sg.lapCaster, ev)
	if newBest {
		publish(sg.events, TopicNewBest, sg.lapCaster, ev)
	}
}

// FinalizeAndReset persists the active session and clears all segmenter
// state. It returns the finalized session record and its path; both are
// empty when there was nothing to persist. Calling it with no active
// session is a no-op.
func (sg *Segmenter) FinalizeAndReset(includeOpenLap bool) (*session.Session, string, error) {
	if !sg.store.Active() {
		return nil, "", nil
	}

	path, err := sg.store.Finalize(includeOpenLap)
	sess := sg.store.Session()
	sg.store.Reset()
	sg.sessionNum = nil
	sg.lapNum = nil
	sg.best = 0

	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", nil
	}
	return sess, path, nil
}

func publish[T any](ps *pubsub.PubSub[string], topic string, c caster.ChannelCaster[T], ev T) {
	payload, err := c.To(ev)
	if err != nil {
		log.Printf("Error casting %s event: %s", topic, err)
		return
	}
	ps.Publish(topic, payload)
}
