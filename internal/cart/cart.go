// Package cart keeps a live, session-scoped view of a guest cart in sync with
// the backend.
package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

var (
	ErrValidation     = errors.New("validation")
	ErrNotInitialized = errors.New("cart not initialized")
	ErrClosed         = errors.New("cart closed")
	ErrMutationFailed = errors.New("cart mutation failed")
)

// Backend is the subset of the backend client the cart depends on.
type Backend interface {
	ListCart(ctx context.Context, sessionID uuid.UUID) ([]models.CartItem, error)
	FindCartItem(ctx context.Context, sessionID uuid.UUID, productID uint) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, sessionID uuid.UUID, productID uint, qty int64) (*models.CartItem, error)
	IncrementCartItem(ctx context.Context, item *models.CartItem, delta int64) error
	UpdateCartQuantity(ctx context.Context, sessionID uuid.UUID, productID uint, qty int64) error
	DeleteCartItem(ctx context.Context, sessionID uuid.UUID, productID uint) error
	ClearCart(ctx context.Context, sessionID uuid.UUID) error
	Subscribe(f realtime.Filter, cb func()) *realtime.Subscription
}

type Resolver interface {
	Resolve(ctx context.Context) (uuid.UUID, error)
}

// Fixed resolves to an id that is already known, e.g. one the HTTP session
// middleware resolved.
type Fixed uuid.UUID

func (f Fixed) Resolve(context.Context) (uuid.UUID, error) {
	return uuid.UUID(f), nil
}

// Line is one product in the cart. Name and price reflect the product as of
// the last load; they are not frozen until checkout.
type Line struct {
	ProductID  uint      `json:"id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	ImageURL   string    `json:"image_url"`
	Flavor     string    `json:"flavor"`
	Stock      int64     `json:"stock"`
	Quantity   int64     `json:"quantity"`
	CartItemID uuid.UUID `json:"cart_item_id"`
}

type Snapshot struct {
	SessionID  uuid.UUID `json:"session_id"`
	Lines      []Line    `json:"items"`
	TotalItems int64     `json:"total_items"`
	TotalPrice int64     `json:"total_price"`
	Loading    bool      `json:"loading"`
}

func TotalItems(lines []Line) int64 {
	var n int64
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func TotalPrice(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Price * l.Quantity
	}
	return sum
}

func linesFromItems(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		lines = append(lines, Line{
			ProductID:  it.ProductID,
			Name:       it.Product.Name,
			Price:      it.Product.Price,
			ImageURL:   it.Product.ImageURL,
			Flavor:     it.Product.Flavor,
			Stock:      it.Product.Stock,
			Quantity:   it.Quantity,
			CartItemID: it.ID,
		})
	}
	return lines
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
