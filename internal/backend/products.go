package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

type ProductPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Flavor      *string `json:"flavor"`
	ImageURL    *string `json:"image_url"`
	Stock       *int64  `json:"stock"`
}

func productCols(id uint) map[string]string {
	return map[string]string{"id": strconv.FormatUint(uint64(id), 10)}
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var items []models.Product
	if err := c.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

// SearchProducts does a case-insensitive substring match on name, flavor and
// description with offset/limit paging.
func (c *Client) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	like := "%" + strings.ToLower(q) + "%"
	where := "LOWER(name) LIKE ? OR LOWER(flavor) LIKE ? OR LOWER(description) LIKE ?"

	var total int64
	if err := c.DB.WithContext(ctx).Model(&models.Product{}).Where(where, like, like, like).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("count products: %w", err)
	}

	items := make([]models.Product, 0, limit)
	if err := c.DB.WithContext(ctx).Where(where, like, like, like).
		Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, fmt.Errorf("search products: %w", err)
	}
	return total, items, nil
}

func (c *Client) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := c.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, notFound(err))
	}
	return &p, nil
}

func (c *Client) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Price < 0 || p.Stock < 0 {
		return fmt.Errorf("price and stock must be non-negative: %w", ErrValidation)
	}
	if err := c.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	c.emit(ctx, TableProducts, realtime.EventInsert, productCols(p.ID))
	return nil
}

func (c *Client) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	var p models.Product
	if err := c.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, notFound(err))
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Flavor != nil {
		p.Flavor = *patch.Flavor
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if p.Price < 0 || p.Stock < 0 {
		return nil, fmt.Errorf("price and stock must be non-negative: %w", ErrValidation)
	}

	if err := c.DB.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	c.emit(ctx, TableProducts, realtime.EventUpdate, productCols(p.ID))
	return &p, nil
}

// SetStock overwrites the stock count. Last write wins.
func (c *Client) SetStock(ctx context.Context, id uint, stock int64) (*models.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("stock must be non-negative: %w", ErrValidation)
	}
	res := c.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("stock", stock)
	if res.Error != nil {
		return nil, fmt.Errorf("set stock %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("set stock %d: %w", id, ErrNotFound)
	}
	c.emit(ctx, TableProducts, realtime.EventUpdate, productCols(id))
	return c.GetProduct(ctx, id)
}

// DecrementStock atomically lowers stock by qty, flooring at zero.
func (c *Client) DecrementStock(ctx context.Context, id uint, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("decrement must be positive: %w", ErrValidation)
	}
	res := c.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Update("stock", gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty))
	if res.Error != nil {
		return fmt.Errorf("decrement stock %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("decrement stock %d: %w", id, ErrNotFound)
	}
	c.emit(ctx, TableProducts, realtime.EventUpdate, productCols(id))
	return nil
}

// DeleteProduct removes the product and any cart lines pointing at it.
// Order lines keep their product id and price snapshot.
func (c *Client) DeleteProduct(ctx context.Context, id uint) error {
	var sessions []string
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CartItem{}).Where("product_id = ?", id).
			Distinct().Pluck("session_id", &sessions).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	c.emit(ctx, TableProducts, realtime.EventDelete, productCols(id))
	for _, s := range sessions {
		c.emit(ctx, TableCartItems, realtime.EventDelete, map[string]string{"session_id": s})
	}
	return nil
}
