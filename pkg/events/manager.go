package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CatchupQuerier resolves events missed between a client's last_event_id
// and now, used to replay history to a freshly (re)connected subscriber.
type CatchupQuerier interface {
	CatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]Event, error)
}

// catchupLimit bounds a single catchup replay; exceeding it tells the
// client to fall back to a full REST reload instead.
const catchupLimit = 200

// Subscriber is one live SSE connection's bounded, per-breadcrumb
// coalescing event queue.
type Subscriber struct {
	ID      string
	Channel string

	mu      sync.Mutex
	buf     []Event
	cap     int
	lag     int
	dropped bool
	signal  chan struct{}

	cancel context.CancelFunc
}

func newSubscriber(channel string, capacity int) *Subscriber {
	return &Subscriber{
		ID:      uuid.NewString(),
		Channel: channel,
		cap:     capacity,
		signal:  make(chan struct{}, 1),
	}
}

// push enqueues ev, coalescing against any already-buffered frame for the
// same breadcrumb (keep-newest). If the backlog is still over capacity
// after coalescing, the oldest frame is dropped and lag is incremented —
// the writer is never blocked on a slow subscriber.
func (s *Subscriber) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.BreadcrumbID != "" {
		for i, buffered := range s.buf {
			if buffered.BreadcrumbID == ev.BreadcrumbID {
				s.buf = append(s.buf[:i], s.buf[i+1:]...)
				break
			}
		}
	}
	s.buf = append(s.buf, ev)

	for len(s.buf) > s.cap {
		s.buf = s.buf[1:]
		s.lag++
		// Backlog stayed over capacity even after per-breadcrumb
		// coalescing: the subscriber is genuinely behind on distinct
		// breadcrumbs, not just noisy on one. Drop the connection so the
		// client reconnects with last_event_id and catches up from
		// retained history instead of silently losing frames forever.
		s.dropped = true
	}

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// drain removes and returns every currently buffered event.
func (s *Subscriber) drain() ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out, s.dropped
}

// Drain is the exported form of drain, used by the gateway's SSE handler
// to pull buffered frames off the queue each time Signal fires.
func (s *Subscriber) Drain() ([]Event, bool) {
	return s.drain()
}

// Signal returns the channel that receives a value whenever push adds to
// the buffer, letting the gateway's SSE write loop block until there is
// something to flush instead of polling.
func (s *Subscriber) Signal() <-chan struct{} {
	return s.signal
}

// Manager is the per-process SSE fanout hub: it tracks channel
// subscriptions and dispatches raw NOTIFY payloads (or direct local
// publishes) to every matching Subscriber's bounded queue.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber   // subscriber id -> subscriber
	byChannel   map[string]map[string]bool // channel -> set of subscriber ids

	listener       *NotifyListener
	catchup        CatchupQuerier
	queueSize      int
	heartbeat      time.Duration
}

// NewManager constructs a Manager. SetListener must be called once the
// NotifyListener exists (they reference each other).
func NewManager(catchup CatchupQuerier, queueSize int, heartbeat time.Duration) *Manager {
	return &Manager{
		subscribers: make(map[string]*Subscriber),
		byChannel:   make(map[string]map[string]bool),
		catchup:     catchup,
		queueSize:   queueSize,
		heartbeat:   heartbeat,
	}
}

// SetListener wires the NotifyListener used to LISTEN/UNLISTEN on demand
// as subscribers come and go.
func (m *Manager) SetListener(l *NotifyListener) { m.listener = l }

// Subscribe registers a new Subscriber on channel, issuing LISTEN if this
// is the channel's first local subscriber.
func (m *Manager) Subscribe(ctx context.Context, channel string) (*Subscriber, error) {
	sub := newSubscriber(channel, m.queueSize)

	m.mu.Lock()
	m.subscribers[sub.ID] = sub
	if m.byChannel[channel] == nil {
		m.byChannel[channel] = make(map[string]bool)
	}
	first := len(m.byChannel[channel]) == 0
	m.byChannel[channel][sub.ID] = true
	m.mu.Unlock()

	if first && m.listener != nil {
		if err := m.listener.Subscribe(ctx, channel); err != nil {
			m.Unsubscribe(sub)
			return nil, fmt.Errorf("listen on channel %s: %w", channel, err)
		}
	}
	return sub, nil
}

// Unsubscribe removes sub, issuing UNLISTEN if it was the channel's last
// local subscriber.
func (m *Manager) Unsubscribe(sub *Subscriber) {
	m.mu.Lock()
	delete(m.subscribers, sub.ID)
	last := false
	if set, ok := m.byChannel[sub.Channel]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(m.byChannel, sub.Channel)
			last = true
		}
	}
	m.mu.Unlock()

	if last && m.listener != nil {
		_ = m.listener.Unsubscribe(context.Background(), sub.Channel)
	}
}

// Broadcast implements Broadcaster: it is invoked by NotifyListener's
// receive loop with the raw NOTIFY payload and fans it to every local
// subscriber of channel.
func (m *Manager) Broadcast(channel string, payload []byte) {
	var ev Event
	if err := decodeEvent(payload, &ev); err != nil {
		slog.Error("discarding malformed notify payload", "channel", channel, "error", err)
		return
	}

	m.mu.RLock()
	ids := m.byChannel[channel]
	subs := make([]*Subscriber, 0, len(ids))
	for id := range ids {
		if s, ok := m.subscribers[id]; ok {
			subs = append(subs, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range subs {
		s.push(ev)
	}
}

// Catchup replays events missed since lastEventID, bounded by
// catchupLimit; callers should fall back to a full reload if it reports
// overflow.
func (m *Manager) Catchup(ctx context.Context, channel string, lastEventID int64) (events []Event, overflowed bool, err error) {
	if m.catchup == nil || lastEventID <= 0 {
		return nil, false, nil
	}
	evs, err := m.catchup.CatchupEvents(ctx, channel, lastEventID, catchupLimit+1)
	if err != nil {
		return nil, false, fmt.Errorf("catchup events: %w", err)
	}
	if len(evs) > catchupLimit {
		return nil, true, nil
	}
	return evs, false, nil
}

// Heartbeat returns the configured idle-write keepalive interval.
func (m *Manager) Heartbeat() time.Duration { return m.heartbeat }
