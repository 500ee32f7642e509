package backend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

func orderCols(o *models.Order) map[string]string {
	return map[string]string{
		"id":         strconv.FormatUint(uint64(o.ID), 10),
		"session_id": o.SessionID.String(),
	}
}

// PlaceOrder inserts the order row and its lines in one transaction. The
// order total must equal the sum of the lines' price snapshots.
func (c *Client) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("order has no lines: %w", ErrValidation)
	}
	var total int64
	for _, it := range items {
		if it.Quantity < 1 || it.PriceAtPurchase < 0 {
			return fmt.Errorf("invalid order line for product %d: %w", it.ProductID, ErrValidation)
		}
		total += it.PriceAtPurchase * it.Quantity
	}
	if total != order.TotalAmount {
		return fmt.Errorf("order total %d does not match lines %d: %w", order.TotalAmount, total, ErrValidation)
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range items {
			items[i].ID = 0
			items[i].OrderID = order.ID
		}
		if err := tx.Omit("Product").Create(&items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Items = items
	c.emit(ctx, TableOrders, realtime.EventInsert, orderCols(order))
	c.emit(ctx, TableOrderItems, realtime.EventInsert, map[string]string{"order_id": strconv.FormatUint(uint64(order.ID), 10)})
	return nil
}

func (c *Client) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := c.DB.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, notFound(err))
	}
	return &o, nil
}

// ListOrders returns every order, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (c *Client) ListSessionOrders(ctx context.Context, sessionID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := c.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list session orders: %w", err)
	}
	return orders, nil
}

// ListOrderItems returns the order's lines with their product joined when it
// still exists.
func (c *Client) ListOrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := c.DB.WithContext(ctx).
		Preload("Product").
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list order items %d: %w", orderID, err)
	}
	return items, nil
}

func (c *Client) ListAllOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := c.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// UpdateOrderStatus assigns status unconditionally; only membership in the
// known set is checked.
func (c *Client) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}

	order, err := c.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update order status %d: %w", id, err)
	}
	order.Status = status

	c.emit(ctx, TableOrders, realtime.EventUpdate, orderCols(order))
	return order, nil
}
