package backend

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/gedebog_store/internal/models"
)

// DefaultProducts is the launch catalog.
func DefaultProducts() []models.Product {
	return []models.Product{
		{Name: "Gedebog Original", Description: "Keripik batang pisang renyah klasik.", Price: 15000, Flavor: "Original", Stock: 100, ImageURL: "https://placehold.co/400x400/png?text=Original"},
		{Name: "Gedebog Balado", Description: "Rasa balado pedas dan gurih.", Price: 16000, Flavor: "Balado", Stock: 80, ImageURL: "https://placehold.co/400x400/png?text=Balado"},
		{Name: "Gedebog Keju", Description: "Rasa keju yang kaya.", Price: 17000, Flavor: "Keju", Stock: 50, ImageURL: "https://placehold.co/400x400/png?text=Cheese"},
		{Name: "Gedebog BBQ", Description: "Rasa BBQ asap.", Price: 16000, Flavor: "BBQ", Stock: 60, ImageURL: "https://placehold.co/400x400/png?text=BBQ"},
	}
}

// SeedProducts inserts products only when the table is empty and reports how
// many rows were written.
func (c *Client) SeedProducts(ctx context.Context, products []models.Product) (int, error) {
	var n int64
	if err := c.DB.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	if err := c.DB.WithContext(ctx).Create(&products).Error; err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	return len(products), nil
}
