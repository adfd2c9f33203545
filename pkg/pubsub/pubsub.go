// Package pubsub is a small topic-based pub/sub used to hand capture events
// to consumers. Publishing never blocks: subscriber channels are buffered and
// a subscriber that has fallen behind loses the newest message, so a slow
// consumer can never stall the capture loop.
package pubsub

import "sync"

const subscriberBuffer = 64

type PubSub[T any] struct {
	mu   sync.Mutex
	subs map[string][]chan T
}

func New[T any]() *PubSub[T] {
	return &PubSub[T]{
		subs: make(map[string][]chan T),
	}
}

func (ps *PubSub[T]) Subscribe(topic string) <-chan T {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ch := make(chan T, subscriberBuffer)
	ps.subs[topic] = append(ps.subs[topic], ch)
	return ch
}

func (ps *PubSub[T]) Publish(topic string, data T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, ch := range ps.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
}
