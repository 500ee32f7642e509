package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

func cartCols(sessionID uuid.UUID) map[string]string {
	return map[string]string{"session_id": sessionID.String()}
}

// ListCart returns the session's cart rows joined with their product, oldest
// first.
func (c *Client) ListCart(ctx context.Context, sessionID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := c.DB.WithContext(ctx).
		Preload("Product").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").Order("product_id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list cart %s: %w", sessionID, err)
	}
	return items, nil
}

func (c *Client) FindCartItem(ctx context.Context, sessionID uuid.UUID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := c.DB.WithContext(ctx).
		Where("session_id = ? AND product_id = ?", sessionID, productID).
		First(&item).Error; err != nil {
		return nil, fmt.Errorf("find cart item: %w", notFound(err))
	}
	return &item, nil
}

func (c *Client) InsertCartItem(ctx context.Context, sessionID uuid.UUID, productID uint, qty int64) (*models.CartItem, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	item := models.CartItem{SessionID: sessionID, ProductID: productID, Quantity: qty}
	if err := c.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("insert cart item: %w", err)
	}
	c.emit(ctx, TableCartItems, realtime.EventInsert, cartCols(sessionID))
	return &item, nil
}

// IncrementCartItem adds delta to the row's quantity in a single statement.
func (c *Client) IncrementCartItem(ctx context.Context, item *models.CartItem, delta int64) error {
	res := c.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("increment cart item %s: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("increment cart item %s: %w", item.ID, ErrNotFound)
	}
	c.emit(ctx, TableCartItems, realtime.EventUpdate, cartCols(item.SessionID))
	return nil
}

func (c *Client) UpdateCartQuantity(ctx context.Context, sessionID uuid.UUID, productID uint, qty int64) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	res := c.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("session_id = ? AND product_id = ?", sessionID, productID).
		Update("quantity", qty)
	if res.Error != nil {
		return fmt.Errorf("update cart quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update cart quantity: %w", ErrNotFound)
	}
	c.emit(ctx, TableCartItems, realtime.EventUpdate, cartCols(sessionID))
	return nil
}

func (c *Client) DeleteCartItem(ctx context.Context, sessionID uuid.UUID, productID uint) error {
	res := c.DB.WithContext(ctx).
		Where("session_id = ? AND product_id = ?", sessionID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("delete cart item: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		c.emit(ctx, TableCartItems, realtime.EventDelete, cartCols(sessionID))
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context, sessionID uuid.UUID) error {
	res := c.DB.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("clear cart %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected > 0 {
		c.emit(ctx, TableCartItems, realtime.EventDelete, cartCols(sessionID))
	}
	return nil
}

func (c *Client) CountCartItems(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	if err := c.DB.WithContext(ctx).Model(&models.CartItem{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return n, nil
}
