package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/orders"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

type OrdersHTTP struct {
	History *orders.History
	Backend *backend.Client
}

func (h *OrdersHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.orders")

	entries, err := h.History.List(ctx, sessionID(c))
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *OrdersHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.order")

	id, ok := parseID(c, "id")
	if !ok {
		l.Warn("get_order_error", "status", 400, "reason", "bad_id")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	entry, err := h.History.Get(ctx, sessionID(c), id)
	if err != nil {
		// Someone else's order is reported as missing.
		if errors.Is(err, backend.ErrNotFound) || errors.Is(err, orders.ErrNotOwned) {
			l.Warn("get_order_error", "status", 404, "order_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, entry)
}

// Stream re-sends the session's order history whenever one of its orders
// is created or changes status.
func (h *OrdersHTTP) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stream.orders")
	id := sessionID(c)

	changed := make(chan struct{}, 1)
	sub := h.Backend.Subscribe(realtime.Eq(backend.TableOrders, realtime.EventAll, "session_id", id.String()), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer sub.Close()

	entries, err := h.History.List(ctx, id)
	if err != nil {
		l.Error("stream_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	startStream(c)
	if err := writeEvent(c, "orders", entries); err != nil {
		return nil
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case <-changed:
			entries, err := h.History.List(ctx, id)
			if err != nil {
				l.Warn("stream_orders_reload_failed", "error", err)
				continue
			}
			if err := writeEvent(c, "orders", entries); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := writeKeepAlive(c); err != nil {
				return nil
			}
		}
	}
}
