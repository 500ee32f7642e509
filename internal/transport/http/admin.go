package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/admin"
	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

const maxImageSize = 5 << 20

type AdminHTTP struct {
	Svc *admin.Service
}

func adminError(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, admin.ErrValidation):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *AdminHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.dashboard")

	st, err := h.Svc.Dashboard(ctx)
	if err != nil {
		return adminError(l, "dashboard_error", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHTTP) Orders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.orders")

	list, err := h.Svc.Orders(ctx)
	if err != nil {
		return adminError(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHTTP) SetOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.order.status")

	id, ok := parseID(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req struct {
		Status models.OrderStatus `json:"status" form:"status"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("set_order_status_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.SetOrderStatus(ctx, id, req.Status)
	if err != nil {
		return adminError(l, "set_order_status_error", err)
	}
	l.Info("order status changed", "order_id", id, "order_status", req.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *AdminHTTP) Products(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.products")

	list, err := h.Svc.Products(ctx)
	if err != nil {
		return adminError(l, "list_products_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create.product")

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Price       int64  `json:"price"`
		Flavor      string `json:"flavor"`
		ImageURL    string `json:"image_url"`
		Stock       int64  `json:"stock"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Flavor:      req.Flavor,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}
	if err := h.Svc.CreateProduct(ctx, p); err != nil {
		return adminError(l, "create_product_error", err)
	}
	l.Info("product created", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *AdminHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update.product")

	id, ok := parseID(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var patch backend.ProductPatch
	if err := c.Bind(&patch); err != nil {
		l.Warn("update_product_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p, err := h.Svc.UpdateProduct(ctx, id, patch)
	if err != nil {
		return adminError(l, "update_product_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHTTP) SetStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.set.stock")

	id, ok := parseID(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var req struct {
		Stock *int64 `json:"stock"`
	}
	if err := c.Bind(&req); err != nil || req.Stock == nil {
		l.Warn("set_stock_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "stock required")
	}

	p, err := h.Svc.SetStock(ctx, id, *req.Stock)
	if err != nil {
		return adminError(l, "set_stock_error", err)
	}
	l.Info("stock set", "product_id", id, "stock", p.Stock)
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete.product")

	id, ok := parseID(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return adminError(l, "delete_product_error", err)
	}
	l.Info("product deleted", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) UploadImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.upload.image")

	id, ok := parseID(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		l.Warn("upload_image_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "image file required")
	}
	if fh.Size > maxImageSize {
		l.Warn("upload_image_error", "status", 400, "size", fh.Size)
		return echo.NewHTTPError(http.StatusBadRequest, "image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return adminError(l, "upload_image_error", err)
	}
	defer f.Close()

	p, err := h.Svc.UploadImage(ctx, id, fh.Filename, f)
	if err != nil {
		return adminError(l, "upload_image_error", err)
	}
	l.Info("image uploaded", "product_id", id, "image_url", p.ImageURL)
	return c.JSON(http.StatusOK, p)
}
