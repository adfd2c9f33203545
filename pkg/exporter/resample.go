package exporter

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"iracingtelemetry/pkg/telemetry"
)

// GridSize is the number of points of the common distance grid, evenly
// spaced over [0, 1) in 0.001 steps.
const GridSize = 1000

var (
	// ErrInsufficientLaps: a comparison needs at least two laps with
	// telemetry.
	ErrInsufficientLaps = errors.New("comparison requires at least 2 laps with telemetry")
	// ErrLapNotFound: a requested lap is absent from the session or holds
	// no samples.
	ErrLapNotFound = errors.New("lap not found or has no telemetry")
)

// channels are the numeric channels resampled for comparison, in output
// column order.
var channels = []struct {
	Name  string
	Value func(s telemetry.Sample) float64
}{
	{"speed", func(s telemetry.Sample) float64 { return s.Speed }},
	{"throttle", func(s telemetry.Sample) float64 { return s.Throttle }},
	{"brake", func(s telemetry.Sample) float64 { return s.Brake }},
	{"steering", func(s telemetry.Sample) float64 { return s.Steering }},
	{"gear", func(s telemetry.Sample) float64 { return float64(s.Gear) }},
	{"rpm", func(s telemetry.Sample) float64 { return s.RPM }},
	{"lat_accel", func(s telemetry.Sample) float64 { return s.LatAccel }},
	{"long_accel", func(s telemetry.Sample) float64 { return s.LongAccel }},
	{"yaw_rate", func(s telemetry.Sample) float64 { return s.YawRate }},
	{"steering_wheel_angle", func(s telemetry.Sample) float64 { return s.SteeringWheelAngle }},
}

// DistanceGrid returns the common normalized-distance grid.
func DistanceGrid() []float64 {
	grid := make([]float64, GridSize)
	floats.Span(grid, 0, float64(GridSize-1)/float64(GridSize))
	return grid
}

// ResampleLap linearly interpolates every channel of a lap's samples onto
// grid, keyed by each sample's lap distance percentage. Outside the sampled
// range the first/last value is held, never extrapolated. The returned map
// is channel name to grid-aligned values.
func ResampleLap(samples []telemetry.Sample, grid []float64) (map[string][]float64, error) {
	if len(samples) == 0 {
		return nil, ErrLapNotFound
	}

	// Interpolation needs ascending x values. Chronological order is kept
	// among equal distances so the lattermost sample wins.
	sorted := make([]telemetry.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LapDistPct < sorted[j].LapDistPct
	})

	unique := sorted[:0]
	for _, s := range sorted {
		if len(unique) > 0 && unique[len(unique)-1].LapDistPct == s.LapDistPct {
			unique[len(unique)-1] = s
			continue
		}
		unique = append(unique, s)
	}

	xs := make([]float64, len(unique))
	for i, s := range unique {
		xs[i] = s.LapDistPct
	}

	out := make(map[string][]float64, len(channels))
	for _, ch := range channels {
		ys := make([]float64, len(unique))
		for i, s := range unique {
			ys[i] = ch.Value(s)
		}
		values, err := interpolate(grid, xs, ys)
		if err != nil {
			return nil, errors.Wrapf(err, "interpolating channel %s", ch.Name)
		}
		out[ch.Name] = values
	}
	return out, nil
}

func interpolate(grid, xs, ys []float64) ([]float64, error) {
	out := make([]float64, len(grid))

	// A single distinct sample degenerates to a constant curve.
	if len(xs) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	first, last := xs[0], xs[len(xs)-1]
	for i, x := range grid {
		switch {
		case x <= first:
			out[i] = ys[0]
		case x >= last:
			out[i] = ys[len(ys)-1]
		default:
			out[i] = pl.Predict(x)
		}
	}
	return out, nil
}
