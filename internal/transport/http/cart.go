package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/catalog"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/mykafka"
)

type CartHTTP struct {
	Carts    *cart.Registry
	Catalog  *catalog.Catalog
	Producer Publisher
}

// withCart runs fn against the session's manager. A manager closed by the
// idle sweep between lookup and use is replaced once.
func (h *CartHTTP) withCart(c echo.Context, fn func(*cart.Manager) error) (*cart.Manager, error) {
	ctx := c.Request().Context()
	id := sessionID(c)

	var m *cart.Manager
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		m, err = h.Carts.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		err = fn(m)
		if !errors.Is(err, cart.ErrClosed) || !m.Closed() {
			return m, err
		}
	}
	return m, err
}

// refreshed reloads the cart so line prices follow product edits made since
// the manager last loaded. A failed reload still serves the cached lines.
func refreshed(ctx context.Context, l *slog.Logger) func(*cart.Manager) error {
	return func(m *cart.Manager) error {
		err := m.Refresh(ctx)
		if err == nil || errors.Is(err, cart.ErrClosed) {
			return err
		}
		l.Warn("cart_refresh_failed", "error", err)
		return nil
	}
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	m, err := h.withCart(c, refreshed(ctx, l))
	if err != nil {
		l.Error("get_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, m.Snapshot())
}

func (h *CartHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	var req struct {
		ProductID uint `json:"product_id" form:"product_id"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		l.Warn("add_to_cart_error", "status", 400, "reason", "missing_product_id")
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	product, err := h.Catalog.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			l.Warn("add_to_cart_error", "status", 404, "product_id", req.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("add_to_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	m, err := h.withCart(c, func(m *cart.Manager) error { return m.AddToCart(ctx, *product) })
	if err != nil {
		return h.mutationError(c, l, "add_to_cart_error", m, err)
	}

	h.publish(ctx, c, "cart_item_added", product.ID)
	l.Info("item added to cart", "product_id", product.ID)
	return c.JSON(http.StatusOK, m.Snapshot())
}

func (h *CartHTTP) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart")

	productID, ok := parseID(c, "product_id")
	if !ok {
		l.Warn("update_cart_error", "status", 400, "reason", "bad_product_id")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var req struct {
		Quantity int64 `json:"quantity" form:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	m, err := h.withCart(c, func(m *cart.Manager) error { return m.UpdateQuantity(ctx, productID, req.Quantity) })
	if err != nil {
		return h.mutationError(c, l, "update_cart_error", m, err)
	}

	if req.Quantity >= 1 {
		h.publish(ctx, c, "cart_item_updated", productID)
	}
	return c.JSON(http.StatusOK, m.Snapshot())
}

func (h *CartHTTP) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart")

	productID, ok := parseID(c, "product_id")
	if !ok {
		l.Warn("remove_from_cart_error", "status", 400, "reason", "bad_product_id")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	m, err := h.withCart(c, func(m *cart.Manager) error { return m.RemoveFromCart(ctx, productID) })
	if err != nil {
		return h.mutationError(c, l, "remove_from_cart_error", m, err)
	}

	h.publish(ctx, c, "cart_item_removed", productID)
	return c.JSON(http.StatusOK, m.Snapshot())
}

// Stream pushes a snapshot on connect and after every change to the cart,
// including changes made from other tabs of the same session.
func (h *CartHTTP) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stream.cart")

	m, err := h.withCart(c, refreshed(ctx, l))
	if err != nil {
		l.Error("stream_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	updates := make(chan cart.Snapshot, 1)
	stop := m.OnChange(func(s cart.Snapshot) {
		// Keep only the newest snapshot; a slow client never blocks the manager.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer stop()

	startStream(c)
	if err := writeEvent(c, "cart", m.Snapshot()); err != nil {
		return nil
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-updates:
			if err := writeEvent(c, "cart", s); err != nil {
				l.Debug("stream_write_failed", "error", err)
				return nil
			}
		case <-ticker.C:
			if err := writeKeepAlive(c); err != nil {
				return nil
			}
		}
	}
}

// mutationError maps cart errors to responses. A failed remote write has
// already been reconciled, so the client gets the authoritative cart back.
func (h *CartHTTP) mutationError(c echo.Context, l *slog.Logger, event string, m *cart.Manager, err error) error {
	switch {
	case errors.Is(err, cart.ErrValidation):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrMutationFailed) && m != nil:
		l.Error(event, "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, map[string]any{
			"message": "cart update failed, showing latest cart",
			"cart":    m.Snapshot(),
		})
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *CartHTTP) publish(ctx context.Context, c echo.Context, kind string, productID uint) {
	if h.Producer == nil {
		return
	}
	id := sessionID(c).String()
	err := h.Producer.PublishEvent(ctx, mykafka.TopicCart, id, map[string]any{
		"type":      kind,
		"sessionID": id,
		"productID": productID,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", mykafka.TopicCart, "error", err)
	}
}
