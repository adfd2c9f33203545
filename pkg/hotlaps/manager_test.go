package hotlaps

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iracingtelemetry/pkg/session"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "hotlaps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func testSession(id, track, driver string, lapTimes ...float64) *session.Session {
	sess := &session.Session{
		Metadata: session.Metadata{
			SessionID:   id,
			Timestamp:   "2026-08-28T10:00:00Z",
			TrackName:   track,
			TrackConfig: "Full Course",
			CarName:     "Global Mazda MX-5",
			SessionType: "Practice",
			DriverName:  driver,
		},
	}
	for i, lt := range lapTimes {
		v := lt
		sess.Laps = append(sess.Laps, session.Lap{LapNumber: i, LapTime: &v})
	}
	return sess
}

func TestRecordSession(t *testing.T) {
	m := newTestManager(t)

	t.Run("first session sets the entry", func(t *testing.T) {
		improved, err := m.RecordSession(testSession("s1", "Summit Point", "Alice", 95.2, 94.1, 96.0))
		require.NoError(t, err)
		assert.Equal(t, 1, improved)

		entries, err := m.Top("", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 94.1, entries[0].LapTime)
		assert.Equal(t, "s1", entries[0].SessionID)
	})

	t.Run("slower session does not replace", func(t *testing.T) {
		improved, err := m.RecordSession(testSession("s2", "Summit Point", "Alice", 94.5))
		require.NoError(t, err)
		assert.Equal(t, 0, improved)

		entries, err := m.Top("", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "s1", entries[0].SessionID)
	})

	t.Run("faster session replaces", func(t *testing.T) {
		improved, err := m.RecordSession(testSession("s3", "Summit Point", "Alice", 93.8))
		require.NoError(t, err)
		assert.Equal(t, 1, improved)

		entries, err := m.Top("", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 93.8, entries[0].LapTime)
		assert.Equal(t, "s3", entries[0].SessionID)
	})

	t.Run("session with no completed laps is ignored", func(t *testing.T) {
		sess := testSession("s4", "Summit Point", "Alice")
		sess.Laps = append(sess.Laps, session.Lap{LapNumber: 0})
		improved, err := m.RecordSession(sess)
		require.NoError(t, err)
		assert.Equal(t, 0, improved)
	})
}

func TestTop(t *testing.T) {
	m := newTestManager(t)

	_, err := m.RecordSession(testSession("s1", "Summit Point", "Alice", 94.1))
	require.NoError(t, err)
	_, err = m.RecordSession(testSession("s2", "Summit Point", "Bob", 93.2))
	require.NoError(t, err)
	_, err = m.RecordSession(testSession("s3", "Lime Rock Park", "Alice", 52.7))
	require.NoError(t, err)

	t.Run("ascending by lap time", func(t *testing.T) {
		entries, err := m.Top("", 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, 52.7, entries[0].LapTime)
		assert.Equal(t, 93.2, entries[1].LapTime)
		assert.Equal(t, 94.1, entries[2].LapTime)
	})

	t.Run("track filter", func(t *testing.T) {
		entries, err := m.Top("Summit Point", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Bob", entries[0].Driver)
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := m.Top("", 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("empty board", func(t *testing.T) {
		other := newTestManager(t)
		entries, err := other.Top("", 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
