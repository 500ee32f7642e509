// Package checkout turns a session's cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/mykafka"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrValidation     = errors.New("validation")
	ErrCheckoutFailed = errors.New("checkout failed")
)

type Backend interface {
	PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	DecrementStock(ctx context.Context, productID uint, qty int64) error
}

// Cart is the live cart being checked out.
type Cart interface {
	SessionID() uuid.UUID
	Refresh(ctx context.Context) error
	Snapshot() cart.Snapshot
	ClearCart(ctx context.Context) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Form struct {
	Name          string               `json:"name"           form:"name"`
	Phone         string               `json:"phone"          form:"phone"`
	Address       string               `json:"address"        form:"address"`
	PaymentMethod models.PaymentMethod `json:"payment_method" form:"payment_method"`
}

// Normalize trims fields and defaults the payment method to cash on delivery.
func (f *Form) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	if f.PaymentMethod == "" {
		f.PaymentMethod = models.PaymentCOD
	}
}

func (f Form) Validate() error {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if f.Phone == "" {
		missing = append(missing, "phone")
	}
	if f.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrValidation)
	}
	if !f.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", f.PaymentMethod, ErrValidation)
	}
	return nil
}

func (f Form) ShippingAddress() string {
	return fmt.Sprintf("%s (%s), %s", f.Name, f.Phone, f.Address)
}

type Service struct {
	Backend  Backend
	Producer Publisher
}

func New(b Backend, p Publisher) *Service {
	return &Service{Backend: b, Producer: p}
}

// PlaceOrder writes the order with a price snapshot of every cart line,
// then decrements stock and clears the cart. Only the order write is fatal.
func (s *Service) PlaceOrder(ctx context.Context, c Cart, form Form) (*models.Order, error) {
	log := logging.FromContext(ctx).With("component", "checkout")

	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	sessionID := c.SessionID()
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session not resolved", ErrCheckoutFailed)
	}
	// Prices are taken from the products as they are now, not as they were
	// when the lines were added.
	if err := c.Refresh(ctx); err != nil {
		log.Error("cart_refresh_failed", slog.String("session_id", sessionID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: refresh cart: %w", ErrCheckoutFailed, err)
	}
	snap := c.Snapshot()
	if len(snap.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]models.OrderItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, models.OrderItem{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price,
		})
	}
	order := &models.Order{
		SessionID:       sessionID,
		TotalAmount:     cart.TotalPrice(snap.Lines),
		Status:          models.OrderStatusPending,
		ShippingAddress: form.ShippingAddress(),
		PaymentMethod:   form.PaymentMethod,
	}

	if err := s.Backend.PlaceOrder(ctx, order, items); err != nil {
		log.Error("order_create_failed", slog.String("session_id", sessionID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}
	log = log.With(slog.Uint64("order_id", uint64(order.ID)))

	for _, it := range items {
		if err := s.Backend.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			log.Warn("stock_decrement_failed",
				slog.Uint64("product_id", uint64(it.ProductID)),
				slog.Int64("quantity", it.Quantity),
				slog.Any("error", err))
		}
	}

	if err := c.ClearCart(ctx); err != nil {
		log.Warn("cart_clear_failed", slog.Any("error", err))
	}

	s.publish(ctx, log, order)
	log.Info("order_placed", slog.Int64("total_amount", order.TotalAmount), slog.Int("lines", len(items)))
	return order, nil
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, order *models.Order) {
	if s.Producer == nil {
		return
	}
	lines := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, map[string]any{
			"productID": it.ProductID,
			"quantity":  it.Quantity,
			"price":     it.PriceAtPurchase,
		})
	}
	event := map[string]any{
		"type":          "order_created",
		"orderID":       order.ID,
		"sessionID":     order.SessionID.String(),
		"totalAmount":   order.TotalAmount,
		"paymentMethod": order.PaymentMethod,
		"items":         lines,
	}
	if err := s.Producer.PublishEvent(ctx, mykafka.TopicOrder, strconv.FormatUint(uint64(order.ID), 10), event); err != nil {
		log.Error("event_publish_failed", slog.String("topic", mykafka.TopicOrder), slog.Any("error", err))
	}
}
