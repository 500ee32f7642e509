// Package admin implements the back-office operations: sales dashboard,
// order status, product edits, stock and images.
package admin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/mykafka"
)

var (
	ErrValidation = backend.ErrValidation
	ErrNotFound   = backend.ErrNotFound
)

const recentOrders = 5

type Backend interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListAllOrderItems(ctx context.Context) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error)

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id uint, patch backend.ProductPatch) (*models.Product, error)
	SetStock(ctx context.Context, id uint, stock int64) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uint) error

	Upload(ctx context.Context, key string, r io.Reader) error
	PublicURL(key string) string
}

// Indexer mirrors product edits into the search index.
type Indexer interface {
	Put(ctx context.Context, p models.Product) error
	Remove(ctx context.Context, id uint) error
}

type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Service struct {
	backend  Backend
	catalog  Invalidator
	index    Indexer
	producer Publisher
}

// New wires the service; catalog, index and producer may be nil.
func New(b Backend, catalog Invalidator, index Indexer, producer Publisher) *Service {
	return &Service{backend: b, catalog: catalog, index: index, producer: producer}
}

type DailyRevenue struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
}

type Stats struct {
	Orders       int            `json:"orders"`
	Revenue      int64          `json:"revenue"`
	Customers    int            `json:"customers"`
	ItemsSold    int64          `json:"items_sold"`
	RecentOrders []models.Order `json:"recent_orders"`
	Daily        []DailyRevenue `json:"daily_revenue"`
}

// Dashboard aggregates over all orders. Customers are counted by distinct
// shipping address since sessions are anonymous.
func (s *Service) Dashboard(ctx context.Context) (*Stats, error) {
	orders, err := s.backend.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	items, err := s.backend.ListAllOrderItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	st := &Stats{Orders: len(orders), RecentOrders: []models.Order{}, Daily: []DailyRevenue{}}
	addresses := make(map[string]struct{}, len(orders))
	daily := make(map[string]int64)
	for _, o := range orders {
		st.Revenue += o.TotalAmount
		addresses[o.ShippingAddress] = struct{}{}
		daily[o.CreatedAt.UTC().Format(time.DateOnly)] += o.TotalAmount
	}
	st.Customers = len(addresses)
	for _, it := range items {
		st.ItemsSold += it.Quantity
	}

	// ListOrders is newest first.
	n := min(recentOrders, len(orders))
	st.RecentOrders = append(st.RecentOrders, orders[:n]...)

	for day, revenue := range daily {
		st.Daily = append(st.Daily, DailyRevenue{Date: day, Revenue: revenue})
	}
	sort.Slice(st.Daily, func(i, j int) bool { return st.Daily[i].Date < st.Daily[j].Date })
	return st, nil
}

func (s *Service) Orders(ctx context.Context) ([]models.Order, error) {
	return s.backend.ListOrders(ctx)
}

// SetOrderStatus assigns any known status regardless of the current one.
func (s *Service) SetOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	order, err := s.backend.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, mykafka.TopicOrder, strconv.FormatUint(uint64(id), 10), map[string]any{
		"type":    "order_status_changed",
		"orderID": id,
		"status":  status,
	})
	return order, nil
}

func (s *Service) Products(ctx context.Context) ([]models.Product, error) {
	return s.backend.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name required: %w", ErrValidation)
	}
	if err := s.backend.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.productChanged(ctx, "product_created", p)
	return nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, patch backend.ProductPatch) (*models.Product, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	}
	p, err := s.backend.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.productChanged(ctx, "product_updated", p)
	return p, nil
}

// SetStock overwrites the stock count; concurrent edits are last-write-wins.
func (s *Service) SetStock(ctx context.Context, id uint, stock int64) (*models.Product, error) {
	p, err := s.backend.SetStock(ctx, id, stock)
	if err != nil {
		return nil, err
	}
	s.productChanged(ctx, "stock_set", p)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.backend.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_index_remove_failed", slog.Uint64("product_id", uint64(id)), slog.Any("error", err))
		}
	}
	s.publish(ctx, mykafka.TopicProduct, strconv.FormatUint(uint64(id), 10), map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	return nil
}

// ImageKey is the object path for a product image.
func ImageKey(productID uint, filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid file name %q: %w", filename, ErrValidation)
	}
	return fmt.Sprintf("products/%d/%s", productID, name), nil
}

// UploadImage stores the file and points the product's image_url at it.
func (s *Service) UploadImage(ctx context.Context, id uint, filename string, r io.Reader) (*models.Product, error) {
	if _, err := s.backend.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	key, err := ImageKey(id, filename)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Upload(ctx, key, r); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	url := s.backend.PublicURL(key)
	return s.UpdateProduct(ctx, id, backend.ProductPatch{ImageURL: &url})
}

func (s *Service) productChanged(ctx context.Context, kind string, p *models.Product) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	if s.index != nil {
		if err := s.index.Put(ctx, *p); err != nil {
			logging.FromContext(ctx).Warn("search_index_put_failed", slog.Uint64("product_id", uint64(p.ID)), slog.Any("error", err))
		}
	}
	s.publish(ctx, mykafka.TopicProduct, strconv.FormatUint(uint64(p.ID), 10), map[string]any{
		"type":      kind,
		"productID": p.ID,
		"price":     p.Price,
		"stock":     p.Stock,
	})
}

func (s *Service) publish(ctx context.Context, topic, key string, event map[string]any) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", slog.String("topic", topic), slog.Any("error", err))
	}
}
