package capture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iracingtelemetry/pkg/caster"
	"iracingtelemetry/pkg/pubsub"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
)

func f64(v float64) *float64 { return &v }

func testMeta() (telemetry.SessionMeta, bool) {
	return telemetry.SessionMeta{
		TrackName:     "Okayama International",
		TrackConfig:   "Full Course",
		CarName:       "Mazda MX-5",
		DriverName:    "Test Driver",
		SessionTypeID: 1,
		SessionNum:    1,
	}, true
}

func testSnap(sessionNum, lap int, lastLapTime *float64, pct float64) telemetry.Snapshot {
	return telemetry.Snapshot{
		SessionNum:  &sessionNum,
		Lap:         &lap,
		LastLapTime: lastLapTime,
		Sample:      telemetry.Sample{LapDistPct: pct, Speed: 40},
	}
}

func newTestSegmenter(t *testing.T) (*Segmenter, *storage.Store, *pubsub.PubSub[string]) {
	t.Helper()
	store := storage.NewStore(t.TempDir())
	events := pubsub.New[string]()
	return NewSegmenter(store, events), store, events
}

func TestSegmenterLapRollover(t *testing.T) {
	sg, store, events := newTestSegmenter(t)
	lapChan := events.Subscribe(TopicLapCompleted)
	bestChan := events.Subscribe(TopicNewBest)

	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.1), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.5), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.9), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 1, f64(92.341), 0.01), testMeta))

	sess := store.Session()
	require.NotNil(t, sess)
	require.Len(t, sess.Laps, 1)
	assert.Equal(t, 0, sess.Laps[0].LapNumber)
	require.NotNil(t, sess.Laps[0].LapTime)
	assert.Equal(t, 92.341, *sess.Laps[0].LapTime)
	assert.Len(t, sess.Laps[0].Telemetry, 3)
	assert.Equal(t, 1, sess.Metadata.TotalLaps)
	assert.Equal(t, 92.341, sg.BestLapTime())

	lapCaster := caster.JSONChannelCaster[LapCompletedEvent]{}

	require.Len(t, lapChan, 1)
	ev, err := lapCaster.From(<-lapChan)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.LapNumber)
	require.NotNil(t, ev.LapTime)
	assert.Equal(t, 92.341, *ev.LapTime)
	assert.True(t, ev.NewBest)
	assert.Equal(t, 92.341, ev.BestTime)

	assert.Len(t, bestChan, 1)
}

func TestSegmenterCounterDelta(t *testing.T) {
	t.Run("jump closes exactly one lap", func(t *testing.T) {
		sg, store, _ := newTestSegmenter(t)

		require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.1), testMeta))
		require.NoError(t, sg.Process(testSnap(1, 3, f64(95.0), 0.2), testMeta))

		require.Len(t, store.Session().Laps, 1)
	})

	t.Run("non-increasing counters never fire", func(t *testing.T) {
		sg, store, _ := newTestSegmenter(t)

		require.NoError(t, sg.Process(testSnap(1, 2, nil, 0.1), testMeta))
		require.NoError(t, sg.Process(testSnap(1, 2, f64(90.0), 0.2), testMeta))
		require.NoError(t, sg.Process(testSnap(1, 1, f64(90.0), 0.3), testMeta))

		assert.Empty(t, store.Session().Laps)
	})
}

func TestSegmenterInvalidLapTime(t *testing.T) {
	cases := []struct {
		name string
		time *float64
	}{
		{"missing", nil},
		{"zero", f64(0)},
		{"negative", f64(-1)},
		{"nan", f64(math.NaN())},
		{"inf", f64(math.Inf(1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sg, store, _ := newTestSegmenter(t)

			require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.5), testMeta))
			require.NoError(t, sg.Process(testSnap(1, 1, tc.time, 0.01), testMeta))

			laps := store.Session().Laps
			require.Len(t, laps, 1)
			assert.Nil(t, laps[0].LapTime)
			assert.Zero(t, sg.BestLapTime())
		})
	}
}

func TestSegmenterBestLap(t *testing.T) {
	sg, _, events := newTestSegmenter(t)
	bestChan := events.Subscribe(TopicNewBest)

	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.5), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 1, f64(95.0), 0.01), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 2, f64(93.5), 0.01), testMeta))
	// A tie keeps the established best, no new-best event.
	require.NoError(t, sg.Process(testSnap(1, 3, f64(93.5), 0.01), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 4, f64(94.2), 0.01), testMeta))

	assert.Equal(t, 93.5, sg.BestLapTime())
	assert.Len(t, bestChan, 2)
}

func TestSegmenterTelemetryGap(t *testing.T) {
	sg, store, _ := newTestSegmenter(t)

	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.5), testMeta))

	lap := 1
	err := sg.Process(telemetry.Snapshot{Lap: &lap}, testMeta)
	assert.ErrorIs(t, err, ErrTelemetryGap)

	num := 1
	err = sg.Process(telemetry.Snapshot{SessionNum: &num}, testMeta)
	assert.ErrorIs(t, err, ErrTelemetryGap)

	// Nothing was appended, nothing rolled over.
	assert.Empty(t, store.Session().Laps)
}

func TestSegmenterMetadataUnavailable(t *testing.T) {
	sg, store, _ := newTestSegmenter(t)
	noMeta := func() (telemetry.SessionMeta, bool) { return telemetry.SessionMeta{}, false }

	err := sg.Process(testSnap(1, 0, nil, 0.5), noMeta)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
	assert.False(t, store.Active())

	// Next poll with metadata available opens the session normally.
	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.6), testMeta))
	require.True(t, store.Active())
	assert.Equal(t, "Okayama International", store.Session().Metadata.TrackName)
}

func TestSegmenterSessionChange(t *testing.T) {
	sg, store, events := newTestSegmenter(t)
	startedChan := events.Subscribe(TopicSessionStarted)

	require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.1), testMeta))
	require.NoError(t, sg.Process(testSnap(1, 1, f64(91.0), 0.01), testMeta))
	firstID := store.Session().Metadata.SessionID

	// Partial telemetry of lap 1 must not survive the session change.
	require.NoError(t, sg.Process(testSnap(1, 1, nil, 0.4), testMeta))

	meta2 := func() (telemetry.SessionMeta, bool) {
		m, _ := testMeta()
		m.SessionNum = 2
		m.SessionTypeID = 4
		return m, true
	}
	require.NoError(t, sg.Process(testSnap(2, 0, nil, 0.1), meta2))

	sess := store.Session()
	require.NotNil(t, sess)
	assert.NotEqual(t, firstID, sess.Metadata.SessionID)
	assert.Equal(t, "Race", sess.Metadata.SessionType)
	assert.Empty(t, sess.Laps)
	assert.Zero(t, sg.BestLapTime())

	// The previous session was persisted with its single completed lap.
	summaries, err := storage.ListAll(store.BaseDir())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, firstID, summaries[0].Metadata.SessionID)
	assert.Equal(t, 1, summaries[0].Metadata.TotalLaps)

	assert.Len(t, startedChan, 2)
}

func TestFinalizeAndReset(t *testing.T) {
	t.Run("no active session is a no-op", func(t *testing.T) {
		sg, _, _ := newTestSegmenter(t)
		sess, path, err := sg.FinalizeAndReset(true)
		assert.NoError(t, err)
		assert.Nil(t, sess)
		assert.Empty(t, path)
	})

	t.Run("open lap kept on shutdown", func(t *testing.T) {
		sg, store, _ := newTestSegmenter(t)
		require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.1), testMeta))
		require.NoError(t, sg.Process(testSnap(1, 1, f64(88.8), 0.01), testMeta))
		require.NoError(t, sg.Process(testSnap(1, 1, nil, 0.3), testMeta))

		sess, path, err := sg.FinalizeAndReset(true)
		require.NoError(t, err)
		require.NotNil(t, sess)
		require.NotEmpty(t, path)
		require.Len(t, sess.Laps, 2)
		assert.Nil(t, sess.Laps[1].LapTime)
		assert.Len(t, sess.Laps[1].Telemetry, 1)
		assert.False(t, store.Active())
	})

	t.Run("session with no laps persists nothing", func(t *testing.T) {
		sg, _, _ := newTestSegmenter(t)
		require.NoError(t, sg.Process(testSnap(1, 0, nil, 0.1), testMeta))

		sess, path, err := sg.FinalizeAndReset(false)
		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.Empty(t, path)
	})
}
