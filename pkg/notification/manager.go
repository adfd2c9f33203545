// Package notification pushes session-started and new-best-lap messages to
// Telegram. It is entirely optional: without a bot token the manager is
// never constructed and capture runs unchanged.
package notification

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nikoksr/notify"

	"iracingtelemetry/pkg/capture"
	"iracingtelemetry/pkg/caster"
	"iracingtelemetry/pkg/helper"
	"iracingtelemetry/pkg/pubsub"
)

type Manager struct {
	ctx    context.Context
	bot    *tgbotapi.BotAPI
	chatID int64
	events *pubsub.PubSub[string]

	startedCaster caster.ChannelCaster[capture.SessionStartedEvent]
	lapCaster     caster.ChannelCaster[capture.LapCompletedEvent]
}

func NewManager(ctx context.Context, token string, chatID int64, events *pubsub.PubSub[string]) (*Manager, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Manager{
		ctx:           ctx,
		bot:           bot,
		chatID:        chatID,
		events:        events,
		startedCaster: caster.JSONChannelCaster[capture.SessionStartedEvent]{},
		lapCaster:     caster.JSONChannelCaster[capture.LapCompletedEvent]{},
	}, nil
}

// Start consumes capture events until ctx is done. Run it on its own
// goroutine.
func (m *Manager) Start() {
	startedChan := m.events.Subscribe(capture.TopicSessionStarted)
	bestChan := m.events.Subscribe(capture.TopicNewBest)
	for {
		select {
		case <-m.ctx.Done():
			return
		case payload := <-startedChan:
			ev, err := m.startedCaster.From(payload)
			if err != nil {
				log.Printf("Error casting session started event: %s", err)
				continue
			}
			body := fmt.Sprintf("Track: %s\nCar: %s\nType: %s", ev.TrackName, ev.CarName, ev.SessionType)
			m.send("Session started", body)
		case payload := <-bestChan:
			ev, err := m.lapCaster.From(payload)
			if err != nil {
				log.Printf("Error casting best lap event: %s", err)
				continue
			}
			if ev.LapTime == nil {
				continue
			}
			body := fmt.Sprintf("Lap %d: %s", ev.LapNumber+1, helper.SecondsToMinutes(*ev.LapTime))
			m.send("New best lap", body)
		}
	}
}

func (m *Manager) send(subject, message string) {
	tg := &Telegram{}
	tg.SetClient(m.bot)
	tg.AddReceivers(m.chatID)

	n := notify.NewWithServices(tg)
	if err := n.Send(m.ctx, subject, message); err != nil {
		log.Printf("Error notifying: %s", err)
	}
}
