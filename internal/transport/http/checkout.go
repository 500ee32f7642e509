package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/checkout"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
)

type CheckoutHTTP struct {
	Carts *cart.Registry
	Svc   *checkout.Service
}

func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "place.order")

	var form checkout.Form
	if err := c.Bind(&form); err != nil {
		l.Warn("place_order_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	m, err := h.Carts.Get(ctx, sessionID(c))
	if err != nil {
		l.Error("place_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	order, err := h.Svc.PlaceOrder(ctx, m, form)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrValidation):
			l.Warn("place_order_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrEmptyCart):
			l.Warn("place_order_error", "status", 409, "error", err)
			return echo.NewHTTPError(http.StatusConflict, "cart is empty")
		default:
			l.Error("place_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "checkout failed, please retry")
		}
	}

	l.Info("order placed", "order_id", order.ID, "total", order.TotalAmount)
	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/api/v1/orders/%d", order.ID))
	return c.JSON(http.StatusCreated, order)
}
