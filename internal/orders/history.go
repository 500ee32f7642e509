// Package orders reads a session's order history.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

var ErrNotOwned = errors.New("order belongs to another session")

const PlaceholderImage = "https://placehold.co/100x100/png?text=Product"

// maxConcurrentFetches bounds per-order item queries.
const maxConcurrentFetches = 8

type Backend interface {
	ListSessionOrders(ctx context.Context, sessionID uuid.UUID) ([]models.Order, error)
	ListOrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error)
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
}

type Line struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	Subtotal  int64  `json:"subtotal"`
}

type Entry struct {
	ID              uint                 `json:"id"`
	Status          models.OrderStatus   `json:"status"`
	TotalAmount     int64                `json:"total_amount"`
	ShippingAddress string               `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	CreatedAt       time.Time            `json:"created_at"`
	Items           []Line               `json:"items"`
}

type History struct {
	Backend Backend
}

func NewHistory(b Backend) *History {
	return &History{Backend: b}
}

// List returns the session's orders newest first. A failed item fetch
// leaves that order with no items instead of failing the whole history.
func (h *History) List(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	orders, err := h.Backend.ListSessionOrders(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	log := logging.FromContext(ctx)
	entries := make([]Entry, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i := range orders {
		entries[i] = newEntry(&orders[i])
		g.Go(func() error {
			items, err := h.Backend.ListOrderItems(gctx, orders[i].ID)
			if err != nil {
				log.Warn("order_items_fetch_failed", slog.Uint64("order_id", uint64(orders[i].ID)), slog.Any("error", err))
				return nil
			}
			entries[i].Items = linesFromItems(items)
			return nil
		})
	}
	_ = g.Wait()

	return entries, nil
}

// Get returns one order if it belongs to the session.
func (h *History) Get(ctx context.Context, sessionID uuid.UUID, id uint) (*Entry, error) {
	order, err := h.Backend.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.SessionID != sessionID {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotOwned)
	}
	items, err := h.Backend.ListOrderItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d items: %w", id, err)
	}
	e := newEntry(order)
	e.Items = linesFromItems(items)
	return &e, nil
}

func newEntry(o *models.Order) Entry {
	return Entry{
		ID:              o.ID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		Items:           []Line{},
	}
}

func linesFromItems(items []models.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		l := Line{
			ProductID: it.ProductID,
			Name:      fmt.Sprintf("Product %d", it.ProductID),
			ImageURL:  PlaceholderImage,
			Quantity:  it.Quantity,
			Price:     it.PriceAtPurchase,
			Subtotal:  it.PriceAtPurchase * it.Quantity,
		}
		if it.Product != nil {
			l.Name = it.Product.Name
			if it.Product.ImageURL != "" {
				l.ImageURL = it.Product.ImageURL
			}
		}
		lines = append(lines, l)
	}
	return lines
}
