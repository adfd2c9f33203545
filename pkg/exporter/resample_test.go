package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iracingtelemetry/pkg/telemetry"
)

func TestDistanceGrid(t *testing.T) {
	grid := DistanceGrid()
	require.Len(t, grid, GridSize)
	assert.Equal(t, 0.0, grid[0])
	assert.InDelta(t, 0.999, grid[GridSize-1], 1e-12)
	assert.InDelta(t, 0.001, grid[1]-grid[0], 1e-12)
	assert.InDelta(t, 0.5, grid[500], 1e-12)
}

func TestResampleLap(t *testing.T) {
	grid := DistanceGrid()

	t.Run("linear between samples, held outside", func(t *testing.T) {
		samples := []telemetry.Sample{
			{LapDistPct: 0.2, Speed: 10, Gear: 2},
			{LapDistPct: 0.8, Speed: 40, Gear: 4},
		}
		data, err := ResampleLap(samples, grid)
		require.NoError(t, err)
		require.Len(t, data["speed"], GridSize)

		// Midpoint of the sampled range interpolates linearly.
		assert.InDelta(t, 25.0, data["speed"][500], 1e-9)
		// Outside the range the edge value is held.
		assert.Equal(t, 10.0, data["speed"][0])
		assert.Equal(t, 10.0, data["speed"][100])
		assert.Equal(t, 40.0, data["speed"][999])
		assert.Equal(t, 40.0, data["speed"][850])
	})

	t.Run("unsorted input is sorted by distance", func(t *testing.T) {
		samples := []telemetry.Sample{
			{LapDistPct: 0.9, Throttle: 1.0},
			{LapDistPct: 0.1, Throttle: 0.0},
		}
		data, err := ResampleLap(samples, grid)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, data["throttle"][500], 1e-9)
	})

	t.Run("duplicate distance keeps the later sample", func(t *testing.T) {
		samples := []telemetry.Sample{
			{LapDistPct: 0.2, Speed: 10},
			{LapDistPct: 0.5, Speed: 999},
			{LapDistPct: 0.5, Speed: 20},
			{LapDistPct: 0.8, Speed: 30},
		}
		data, err := ResampleLap(samples, grid)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, data["speed"][500], 1e-9)
	})

	t.Run("single sample degenerates to a constant", func(t *testing.T) {
		samples := []telemetry.Sample{{LapDistPct: 0.4, RPM: 4500}}
		data, err := ResampleLap(samples, grid)
		require.NoError(t, err)
		assert.Equal(t, 4500.0, data["rpm"][0])
		assert.Equal(t, 4500.0, data["rpm"][999])
	})

	t.Run("no samples", func(t *testing.T) {
		_, err := ResampleLap(nil, grid)
		assert.ErrorIs(t, err, ErrLapNotFound)
	})

	t.Run("all channels present", func(t *testing.T) {
		samples := []telemetry.Sample{
			{LapDistPct: 0.1},
			{LapDistPct: 0.9},
		}
		data, err := ResampleLap(samples, grid)
		require.NoError(t, err)
		for _, ch := range channels {
			assert.Contains(t, data, ch.Name)
		}
	})
}
