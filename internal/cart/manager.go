package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

const (
	loadKey          = "load"
	reconcileTimeout = 10 * time.Second
)

// Manager owns the in-memory cart of one session. Local updates are applied
// under mu in call order; remote calls run outside it.
type Manager struct {
	backend  Backend
	resolver Resolver
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  singleflight.Group

	mu           sync.Mutex
	sessionID    uuid.UUID
	lines        []Line
	loading      int
	pending      int
	gen          uint64
	closed       bool
	sub          *realtime.Subscription
	listeners    map[int]func(Snapshot)
	nextListener int
}

func NewManager(b Backend, r Resolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		backend:   b,
		resolver:  r,
		logger:    logger.With("component", "cart.manager"),
		ctx:       logging.IntoContext(ctx, logger),
		cancel:    cancel,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Initialize resolves the session, subscribes to its cart rows and performs
// the first load. On failure nothing stays subscribed.
func (m *Manager) Initialize(ctx context.Context) error {
	id, err := m.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.sessionID = id
	m.mu.Unlock()

	sub := m.backend.Subscribe(
		realtime.Eq(backend.TableCartItems, realtime.EventAll, "session_id", id.String()),
		m.reconcile,
	)

	if err := m.Load(ctx); err != nil {
		sub.Close()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		sub.Close()
		return ErrClosed
	}
	m.sub = sub
	m.logger.Info("cart_initialized", slog.String("session_id", id.String()), slog.Int("lines", len(m.lines)))
	return nil
}

// Load replaces the local list with the backend's rows. Concurrent loads
// share one fetch. Results that arrive after Close, or that overlap a local
// mutation, are dropped; the mutation is followed by its own reload.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.sessionID
	if id == uuid.Nil {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	gen := m.gen
	m.loading++
	m.mu.Unlock()

	v, err, _ := m.loads.Do(loadKey, func() (any, error) {
		return m.backend.ListCart(ctx, id)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading--
	if m.closed {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if m.gen != gen || m.pending > 0 {
		return nil
	}
	m.lines = linesFromItems(v.([]models.CartItem))
	m.notifyLocked()
	return nil
}

// Refresh is a Load that never reuses a fetch already in flight, so product
// edits made before the call are always observed. Older in-flight loads are
// dropped when they land.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
	m.loads.Forget(loadKey)
	return m.Load(ctx)
}

func (m *Manager) reconcile() {
	ctx, cancel := context.WithTimeout(m.ctx, reconcileTimeout)
	defer cancel()
	if err := m.Load(ctx); err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Warn("cart_reconcile_failed", slog.String("session_id", m.SessionID().String()), slog.Any("error", err))
	}
}

// mutate applies apply to the local list right away, then runs remote. When
// remote fails the projection is discarded by a full reload.
func (m *Manager) mutate(ctx context.Context, op string, apply func([]Line) []Line, remote func(context.Context, uuid.UUID) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.sessionID
	if id == uuid.Nil {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.lines = apply(cloneLines(m.lines))
	m.pending++
	m.gen++
	m.notifyLocked()
	m.mu.Unlock()

	err := remote(ctx, id)
	// A load that started before the write must not be shared with later callers.
	m.loads.Forget(loadKey)
	m.mu.Lock()
	m.pending--
	m.gen++
	m.mu.Unlock()
	if err == nil {
		return nil
	}

	log := logging.FromContext(ctx)
	log.Warn("cart_mutation_failed",
		slog.String("op", op),
		slog.String("session_id", id.String()),
		slog.Any("error", err))
	if lerr := m.Load(ctx); lerr != nil && !errors.Is(lerr, ErrClosed) {
		log.Error("cart_reconcile_failed", slog.String("session_id", id.String()), slog.Any("error", lerr))
	}
	return fmt.Errorf("%w: %s: %w", ErrMutationFailed, op, err)
}

// AddToCart increments the product's line or creates it with quantity 1.
func (m *Manager) AddToCart(ctx context.Context, p models.Product) error {
	if p.ID == 0 {
		return fmt.Errorf("product id required: %w", ErrValidation)
	}

	apply := func(lines []Line) []Line {
		for i := range lines {
			if lines[i].ProductID == p.ID {
				lines[i].Quantity++
				return lines
			}
		}
		return append(lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Flavor:    p.Flavor,
			Stock:     p.Stock,
			Quantity:  1,
		})
	}

	return m.mutate(ctx, "add", apply, func(ctx context.Context, sessionID uuid.UUID) error {
		item, err := m.backend.FindCartItem(ctx, sessionID, p.ID)
		if err == nil {
			return m.backend.IncrementCartItem(ctx, item, 1)
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if _, err := m.backend.InsertCartItem(ctx, sessionID, p.ID, 1); err != nil {
			// Lost a race with another tab inserting the same product.
			item, ferr := m.backend.FindCartItem(ctx, sessionID, p.ID)
			if ferr != nil {
				return err
			}
			return m.backend.IncrementCartItem(ctx, item, 1)
		}
		return nil
	})
}

func (m *Manager) RemoveFromCart(ctx context.Context, productID uint) error {
	apply := func(lines []Line) []Line {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out
	}
	return m.mutate(ctx, "remove", apply, func(ctx context.Context, sessionID uuid.UUID) error {
		return m.backend.DeleteCartItem(ctx, sessionID, productID)
	})
}

// UpdateQuantity sets an absolute quantity. Quantities below 1 and calls
// before the session is known are ignored.
func (m *Manager) UpdateQuantity(ctx context.Context, productID uint, qty int64) error {
	if qty < 1 || m.SessionID() == uuid.Nil {
		return nil
	}
	apply := func(lines []Line) []Line {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = qty
			}
		}
		return lines
	}
	return m.mutate(ctx, "update_quantity", apply, func(ctx context.Context, sessionID uuid.UUID) error {
		return m.backend.UpdateCartQuantity(ctx, sessionID, productID, qty)
	})
}

// ClearCart empties the cart after an order has been placed.
func (m *Manager) ClearCart(ctx context.Context) error {
	apply := func([]Line) []Line { return nil }
	return m.mutate(ctx, "clear", apply, func(ctx context.Context, sessionID uuid.UUID) error {
		return m.backend.ClearCart(ctx, sessionID)
	})
}

func (m *Manager) SessionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Lines returns a copy of the current list.
func (m *Manager) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneLines(m.lines)
}

func (m *Manager) TotalItems() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TotalItems(m.lines)
}

func (m *Manager) TotalPrice() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TotalPrice(m.lines)
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:  m.sessionID,
		Lines:      cloneLines(m.lines),
		TotalItems: TotalItems(m.lines),
		TotalPrice: TotalPrice(m.lines),
		Loading:    m.loading > 0,
	}
}

// OnChange registers fn to receive a snapshot after every local change. fn
// runs with the manager locked and must not call back into it. The returned
// func unregisters fn.
func (m *Manager) OnChange(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *Manager) notifyLocked() {
	if len(m.listeners) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, fn := range m.listeners {
		fn(snap)
	}
}

// Close releases the realtime subscription. Later loads and mutations are
// rejected and in-flight results are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sub := m.sub
	m.sub = nil
	m.listeners = make(map[int]func(Snapshot))
	m.mu.Unlock()

	m.cancel()
	sub.Close()
}

func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
