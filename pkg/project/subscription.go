package project

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Subscription receives every event published after Subscribe returned. Events are delivered in
// publish order; a slow subscriber holds up the writer until it reads or closes.
type Subscription struct {
	id     uint64
	m      *Manager
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (m *Manager) Subscribe(buffer int) *Subscription {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	s := &Subscription{
		id:     m.nextSub,
		m:      m,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	m.nextSub++

	select {
	case <-m.done:
		s.closeLocked()
		return s
	default:
	}

	m.subs[s.id] = s
	m.subscribers.Add(1)
	return s
}

// SubscriberCount is the number of open subscriptions.
func (m *Manager) SubscriberCount() int {
	return int(m.subscribers.Load())
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Close() {
	s.m.subsMu.Lock()
	defer s.m.subsMu.Unlock()
	if _, ok := s.m.subs[s.id]; ok {
		delete(s.m.subs, s.id)
		s.m.subscribers.Add(-1)
	}
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (m *Manager) broadcast(ctx context.Context, ev Event) {
	m.subsMu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.subsMu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- ev:
		case <-s.done:
		case <-m.done:
			return
		}
	}
	zerolog.Ctx(ctx).Trace().Stringer("kind", ev.Kind).Str("path", ev.Path).Int("subscribers", len(subs)).Msg("published document")
}
