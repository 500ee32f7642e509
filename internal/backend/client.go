// Package backend is the typed client for the storefront's backing service:
// the five relational tables, their change feed and the object store.
package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
	"github.com/Skotchmaster/gedebog_store/internal/storage"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation")
)

const (
	TableSessions   = "sessions"
	TableProducts   = "products"
	TableCartItems  = "cart_items"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

type Client struct {
	DB       *gorm.DB
	Hub      *realtime.Hub
	Notifier realtime.Notifier
	Objects  *storage.Store
}

// New wires a client. When notifier is nil changes are dispatched straight to
// the local hub.
func New(db *gorm.DB, hub *realtime.Hub, notifier realtime.Notifier, objects *storage.Store) *Client {
	if notifier == nil {
		notifier = hub
	}
	return &Client{DB: db, Hub: hub, Notifier: notifier, Objects: objects}
}

// Subscribe opens a change subscription; cb is invoked with no payload.
func (c *Client) Subscribe(f realtime.Filter, cb func()) *realtime.Subscription {
	return c.Hub.Subscribe(f, cb)
}

func (c *Client) Upload(ctx context.Context, key string, r io.Reader) error {
	return c.Objects.Upload(ctx, key, r)
}

func (c *Client) PublicURL(key string) string {
	return c.Objects.PublicURL(key)
}

func (c *Client) emit(ctx context.Context, table string, ev realtime.Event, cols map[string]string) {
	err := c.Notifier.Notify(ctx, realtime.Change{Table: table, Event: ev, Columns: cols})
	if err != nil {
		logging.FromContext(ctx).Warn("change_notify_failed",
			slog.String("table", table), slog.String("event", string(ev)), slog.Any("error", err))
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
