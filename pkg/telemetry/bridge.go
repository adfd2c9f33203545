package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"iracingtelemetry/pkg/caster"
)

const (
	mtTelemetry   = "telemetry"
	mtSessionInfo = "sessionInfo"

	// staleAfter marks the provider disconnected when no message arrived
	// for this long.
	staleAfter = 5 * time.Second

	redialDelay = 2 * time.Second
)

// Message is the envelope the sim-side bridge sends on its websocket.
type Message struct {
	MessageType string          `json:"type"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type bridgeTelemetry struct {
	SessionNum  *int     `json:"session_num"`
	Lap         *int     `json:"lap"`
	LastLapTime *float64 `json:"lap_last_lap_time"`
	Sample
}

type bridgeSessionInfo struct {
	TrackName     string `json:"track_name"`
	TrackConfig   string `json:"track_config"`
	CarName       string `json:"car_name"`
	DriverName    string `json:"driver_name"`
	SessionTypeID int    `json:"session_type_id"`
	SessionNum    int    `json:"session_num"`
}

// BridgeProvider reads flat telemetry snapshots from a sim-side websocket
// bridge and caches the latest for the capture loop to poll.
type BridgeProvider struct {
	url string

	telemetryCaster caster.JSONChannelCaster[bridgeTelemetry]
	metaCaster      caster.JSONChannelCaster[bridgeSessionInfo]

	mu       sync.Mutex
	snap     *Snapshot
	meta     *SessionMeta
	lastSeen time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBridgeProvider(url string) *BridgeProvider {
	return &BridgeProvider{
		url:  url,
		done: make(chan struct{}),
	}
}

// Start launches the reader goroutine. It keeps redialing until Close or
// ctx cancellation.
func (p *BridgeProvider) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

func (p *BridgeProvider) run(ctx context.Context) {
	defer close(p.done)
	for {
		if err := p.readOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Error reading from bridge %s: %s", p.url, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(redialDelay):
		}
	}
}

func (p *BridgeProvider) readOnce(ctx context.Context) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}
	c, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	log.Printf("connected to %s", p.url)

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		var m Message
		if err := c.ReadJSON(&m); err != nil {
			return err
		}
		p.dispatch(m)
	}
}

func (p *BridgeProvider) dispatch(m Message) {
	switch m.MessageType {
	case mtTelemetry:
		body, err := p.telemetryCaster.FromBytes(m.Body)
		if err != nil {
			log.Printf("Error unmarshalling telemetry: %s", err)
			return
		}
		p.mu.Lock()
		p.snap = &Snapshot{
			SessionNum:  body.SessionNum,
			Lap:         body.Lap,
			LastLapTime: body.LastLapTime,
			Sample:      body.Sample,
		}
		p.lastSeen = time.Now()
		p.mu.Unlock()
	case mtSessionInfo:
		body, err := p.metaCaster.FromBytes(m.Body)
		if err != nil {
			log.Printf("Error unmarshalling sessionInfo: %s", err)
			return
		}
		p.mu.Lock()
		p.meta = &SessionMeta{
			TrackName:     body.TrackName,
			TrackConfig:   body.TrackConfig,
			CarName:       body.CarName,
			DriverName:    body.DriverName,
			SessionTypeID: body.SessionTypeID,
			SessionNum:    body.SessionNum,
		}
		p.lastSeen = time.Now()
		p.mu.Unlock()
	}
}

func (p *BridgeProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap != nil && time.Since(p.lastSeen) < staleAfter
}

func (p *BridgeProvider) Telemetry() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return Snapshot{}, false
	}
	return *p.snap, true
}

func (p *BridgeProvider) SessionMeta() (SessionMeta, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.meta == nil {
		return SessionMeta{}, false
	}
	return *p.meta, true
}

func (p *BridgeProvider) Close() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}
