package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iracingtelemetry/pkg/pubsub"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
)

// scriptedProvider replays a fixed snapshot sequence, repeating the last one
// once the script runs out.
type scriptedProvider struct {
	mu     sync.Mutex
	script []telemetry.Snapshot
	pos    int
	closed bool
}

func (p *scriptedProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *scriptedProvider) Telemetry() (telemetry.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.script) == 0 {
		return telemetry.Snapshot{}, false
	}
	snap := p.script[p.pos]
	if p.pos < len(p.script)-1 {
		p.pos++
	}
	return snap, true
}

func (p *scriptedProvider) SessionMeta() (telemetry.SessionMeta, bool) {
	return testMeta()
}

func (p *scriptedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestManagerRun(t *testing.T) {
	dir := t.TempDir()
	provider := &scriptedProvider{script: []telemetry.Snapshot{
		testSnap(1, 0, nil, 0.3),
		testSnap(1, 0, nil, 0.7),
		testSnap(1, 1, f64(90.5), 0.01),
		testSnap(1, 1, nil, 0.2),
	}}

	store := storage.NewStore(dir)
	events := pubsub.New[string]()
	m := NewManager(provider, store, nil, nil, events, 200)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	// Shutdown finalized the session, open lap included.
	summaries, err := storage.ListAll(dir)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Metadata.TotalLaps)

	loaded, _, err := storage.LoadByID(dir, summaries[0].Metadata.SessionID)
	require.NoError(t, err)
	require.Len(t, loaded.Laps, 2)
	require.NotNil(t, loaded.Laps[0].LapTime)
	assert.Equal(t, 90.5, *loaded.Laps[0].LapTime)
	assert.Nil(t, loaded.Laps[1].LapTime)

	assert.False(t, provider.Connected())
}

func TestManagerRunWithoutConnection(t *testing.T) {
	provider := &scriptedProvider{closed: true}
	m := NewManager(provider, storage.NewStore(t.TempDir()), nil, nil, pubsub.New[string](), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, m.Run(ctx))
}

func TestStatusLine(t *testing.T) {
	lap := 3
	line := statusLine(telemetry.Snapshot{
		Lap: &lap,
		Sample: telemetry.Sample{
			Throttle: 0.5, Brake: 0.0, Speed: 44.7, Gear: 4, LapDist: 1234.5,
		},
	})
	assert.Contains(t, line, "Gear:  4")
	assert.Contains(t, line, "Lap:   3")

	reverse := statusLine(telemetry.Snapshot{Sample: telemetry.Sample{Gear: -1}})
	assert.Contains(t, reverse, "Gear:  R")

	neutral := statusLine(telemetry.Snapshot{Sample: telemetry.Sample{Gear: 0}})
	assert.Contains(t, neutral, "Gear:  N")
}
