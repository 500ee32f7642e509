package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/admin"
	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/catalog"
	"github.com/Skotchmaster/gedebog_store/internal/checkout"
	"github.com/Skotchmaster/gedebog_store/internal/orders"
	"github.com/Skotchmaster/gedebog_store/internal/session"
)

// Publisher sends domain events; a nil *mykafka.Producer is a valid no-op.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Deps struct {
	Backend  *backend.Client
	Sessions session.CookieCodec
	Carts    *cart.Registry
	Catalog  *catalog.Catalog
	Checkout *checkout.Service
	History  *orders.History
	Admin    *admin.Service
	Producer Publisher

	// Media serves uploaded objects under MediaPrefix.
	Media       http.Handler
	MediaPrefix string

	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	if d.Media != nil && d.MediaPrefix != "" {
		e.GET(d.MediaPrefix+"/*", echo.WrapHandler(http.StripPrefix(d.MediaPrefix, d.Media)))
	}

	products := &ProductHTTP{Catalog: d.Catalog}
	carts := &CartHTTP{Carts: d.Carts, Catalog: d.Catalog, Producer: d.Producer}
	checkoutH := &CheckoutHTTP{Carts: d.Carts, Svc: d.Checkout}
	ordersH := &OrdersHTTP{History: d.History, Backend: d.Backend}
	adminH := &AdminHTTP{Svc: d.Admin}

	v1 := e.Group("/api/v1")

	v1.GET("/products", products.List)
	v1.GET("/products/search", products.Search)
	v1.GET("/products/:id", products.Get)

	sess := SessionMiddleware(d.Backend, d.Sessions)

	v1.GET("/cart", carts.Get, sess)
	v1.POST("/cart", carts.Add, sess)
	v1.GET("/cart/stream", carts.Stream, sess)
	v1.PATCH("/cart/:product_id", carts.UpdateQuantity, sess)
	v1.DELETE("/cart/:product_id", carts.Remove, sess)

	v1.POST("/checkout", checkoutH.PlaceOrder, sess)

	v1.GET("/orders", ordersH.List, sess)
	v1.GET("/orders/stream", ordersH.Stream, sess)
	v1.GET("/orders/:id", ordersH.Get, sess)

	adm := v1.Group("/admin")

	adm.GET("/dashboard", adminH.Dashboard)
	adm.GET("/orders", adminH.Orders)
	adm.PATCH("/orders/:id/status", adminH.SetOrderStatus)
	adm.GET("/products", adminH.Products)
	adm.POST("/products", adminH.CreateProduct)
	adm.PATCH("/products/:id", adminH.UpdateProduct)
	adm.DELETE("/products/:id", adminH.DeleteProduct)
	adm.PUT("/products/:id/stock", adminH.SetStock)
	adm.POST("/products/:id/image", adminH.UploadImage)
}
