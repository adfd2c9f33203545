package main

import (
	"math"
	"os"
	"sync"
	"time"

	"iracingtelemetry/pkg/telemetry"
)

const (
	mockLapLength = 1600.0 // meters
	mockSpeed     = 45.0   // m/s average
)

// mockProvider synthesizes a plausible telemetry stream for development runs
// without a sim attached. One lap takes mockLapLength/mockSpeed seconds.
type mockProvider struct {
	mu     sync.Mutex
	start  time.Time
	closed bool
}

func newMockProvider() *mockProvider {
	return &mockProvider{start: time.Now()}
}

func (p *mockProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.closed
}

func (p *mockProvider) Telemetry() (telemetry.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return telemetry.Snapshot{}, false
	}

	elapsed := time.Since(p.start).Seconds()
	dist := elapsed * mockSpeed
	lap := int(dist / mockLapLength)
	pct := math.Mod(dist, mockLapLength) / mockLapLength

	sessionNum := 1
	snap := telemetry.Snapshot{
		SessionNum: &sessionNum,
		Lap:        &lap,
		Sample:     mockSample(elapsed, dist, pct),
	}
	if lap > 0 {
		lastLap := mockLapTime(lap - 1)
		snap.LastLapTime = &lastLap
	}
	return snap, true
}

func (p *mockProvider) SessionMeta() (telemetry.SessionMeta, bool) {
	driver := os.Getenv("USER")
	if driver == "" {
		driver = "Mock Driver"
	}
	return telemetry.SessionMeta{
		TrackName:     "Centripetal Circuit",
		TrackConfig:   "Grand Prix",
		CarName:       "Formula Vee",
		DriverName:    driver,
		SessionTypeID: 0,
		SessionNum:    1,
	}, true
}

func (p *mockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// mockLapTime is deterministic per lap so the best-lap logic has something
// to chew on.
func mockLapTime(lap int) float64 {
	return mockLapLength/mockSpeed + 1.5*math.Sin(float64(lap))
}

func mockSample(elapsed, dist, pct float64) telemetry.Sample {
	// Two "corners" per lap: throttle and speed dip around pct 0.25 and 0.75.
	corner := math.Abs(math.Sin(2 * math.Pi * pct))
	speed := mockSpeed + 12.0*(1.0-corner) - 8.0*corner
	throttle := 1.0 - 0.9*corner
	brake := 0.0
	if corner > 0.85 {
		brake = corner - 0.85
	}
	steering := 0.4 * math.Sin(4*math.Pi*pct)
	gear := 2 + int(3*(1.0-corner))

	return telemetry.Sample{
		Time:               elapsed,
		LapDist:            math.Mod(dist, mockLapLength),
		LapDistPct:         pct,
		Speed:              speed,
		Throttle:           throttle,
		Brake:              brake,
		Steering:           steering,
		Gear:               gear,
		RPM:                2500 + speed*90,
		LatAccel:           corner * 14.0,
		LongAccel:          (throttle - brake*3) * 4.0,
		YawRate:            steering * 0.8,
		SteeringWheelAngle: steering * 3.2,
	}
}
