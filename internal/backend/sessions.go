package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/gedebog_store/internal/models"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
)

func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := c.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, notFound(err))
	}
	return &s, nil
}

func (c *Client) CreateSession(ctx context.Context) (*models.Session, error) {
	now := time.Now().UTC()
	s := models.Session{CreatedAt: now, LastActive: now}
	if err := c.DB.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.emit(ctx, TableSessions, realtime.EventInsert, map[string]string{"id": s.ID.String()})
	return &s, nil
}

func (c *Client) TouchSession(ctx context.Context, id uuid.UUID) error {
	res := c.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("last_active", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("touch session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("touch session %s: %w", id, ErrNotFound)
	}
	return nil
}
