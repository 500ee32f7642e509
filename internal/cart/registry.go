package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	m        *Manager
	lastUsed time.Time
}

// Registry keeps one live Manager per active session.
type Registry struct {
	backend Backend
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	inits singleflight.Group

	mu       sync.Mutex
	managers map[uuid.UUID]*entry
	closed   bool
}

func NewRegistry(b Backend, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend:  b,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		managers: make(map[uuid.UUID]*entry),
	}
}

// Get returns the session's manager, initializing it on first use.
func (r *Registry) Get(ctx context.Context, sessionID uuid.UUID) (*Manager, error) {
	if m, ok := r.lookup(sessionID); ok {
		return m, nil
	}

	v, err, _ := r.inits.Do(sessionID.String(), func() (any, error) {
		if m, ok := r.lookup(sessionID); ok {
			return m, nil
		}
		m := NewManager(r.backend, Fixed(sessionID), r.logger)
		if err := m.Initialize(ctx); err != nil {
			m.Close()
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			m.Close()
			return nil, ErrClosed
		}
		r.managers[sessionID] = &entry{m: m, lastUsed: r.now()}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manager), nil
}

func (r *Registry) lookup(sessionID uuid.UUID) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.m, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Sweep closes managers idle for longer than the TTL. Managers with
// listeners attached (open streams) are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	var stale []*Manager
	r.mu.Lock()
	for id, e := range r.managers {
		if e.lastUsed.Before(cutoff) && e.m.listenerCount() == 0 {
			stale = append(stale, e.m)
			delete(r.managers, id)
		}
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("cart_registry_swept", slog.Int("closed", len(stale)))
	}
	return len(stale)
}

// Run sweeps on a ticker until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// Close tears down every manager. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[uuid.UUID]*entry)
	r.closed = true
	r.mu.Unlock()

	for _, e := range managers {
		e.m.Close()
	}
}
