// Package realtime delivers row change notifications to subscribers keyed by
// table, event kind and an optional column equality filter.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	EventAll    Event = "*"
)

// Change describes one mutated row. Columns carries the values a Filter can
// match on (ids, foreign keys), not the full row.
type Change struct {
	Table   string            `json:"table"`
	Event   Event             `json:"event"`
	Columns map[string]string `json:"columns,omitempty"`
	At      time.Time         `json:"at"`
}

type Filter struct {
	Table  string
	Event  Event
	Column string
	Value  string
}

// Eq builds a filter for rows of table whose column equals value.
func Eq(table string, event Event, column, value string) Filter {
	return Filter{Table: table, Event: event, Column: column, Value: value}
}

func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAll && f.Event != c.Event {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := c.Columns[f.Column]
	return ok && v == f.Value
}

// Notifier publishes a change to every interested subscriber, possibly in
// other processes.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: logger.With("component", "realtime.hub"),
	}
}

// Subscribe registers cb for changes matching f. The callback takes no
// payload: receivers are expected to re-fetch. Bursts of matching changes
// that arrive while cb is running collapse into a single further call.
func (h *Hub) Subscribe(f Filter, cb func()) *Subscription {
	s := &Subscription{
		hub:     h,
		filter:  f,
		cb:      cb,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.once.Do(func() { close(s.done) })
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	go s.loop()
	return s
}

// Notify dispatches c to local subscribers. It never blocks on a subscriber.
func (h *Hub) Notify(_ context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.filter.Matches(c) {
			s.signal()
		}
	}
	h.logger.Debug("change_dispatched", "table", c.Table, "event", c.Event)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type Subscription struct {
	id      uint64
	hub     *Hub
	filter  Filter
	cb      func()
	pending chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription) Filter() Filter { return s.filter }

// Close releases the subscription. Safe to call more than once and from
// inside the callback.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.hub.remove(s.id)
	s.stop()
}

func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) signal() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Subscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.pending:
			select {
			case <-s.done:
				return
			default:
			}
			s.cb()
		}
	}
}
