// Package session resolves the anonymous guest identity of a browsing client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/models"
)

var ErrSessionUnavailable = errors.New("session unavailable")

type Backend interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	CreateSession(ctx context.Context) (*models.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID) error
}

// TokenStore persists the session id on the client side. Load returns
// uuid.Nil when nothing usable is stored.
type TokenStore interface {
	Load(ctx context.Context) (uuid.UUID, error)
	Save(ctx context.Context, id uuid.UUID) error
}

// Provider resolves one client's session id and remembers it for the
// lifetime of the provider.
type Provider struct {
	backend Backend
	store   TokenStore

	mu sync.Mutex
	id uuid.UUID
}

func NewProvider(backend Backend, store TokenStore) *Provider {
	return &Provider{backend: backend, store: store}
}

// Resolve returns the client's session id, creating a session remotely when
// the stored token is missing or no longer resolves. Concurrent callers
// share a single resolution. A failed resolution is not remembered.
func (p *Provider) Resolve(ctx context.Context) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != uuid.Nil {
		return p.id, nil
	}

	log := logging.FromContext(ctx).With("component", "session.provider")

	stored, err := p.store.Load(ctx)
	if err != nil {
		log.Warn("token_load_failed", slog.Any("error", err))
		stored = uuid.Nil
	}

	if stored != uuid.Nil {
		_, err := p.backend.GetSession(ctx, stored)
		if err == nil {
			if err := p.backend.TouchSession(ctx, stored); err != nil {
				log.Warn("session_touch_failed", slog.String("session_id", stored.String()), slog.Any("error", err))
			}
			p.id = stored
			return p.id, nil
		}
		log.Info("stored_session_rejected", slog.String("session_id", stored.String()), slog.Any("error", err))
	}

	s, err := p.backend.CreateSession(ctx)
	if err != nil {
		log.Error("session_create_failed", slog.Any("error", err))
		return uuid.Nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if err := p.store.Save(ctx, s.ID); err != nil {
		log.Error("token_save_failed", slog.String("session_id", s.ID.String()), slog.Any("error", err))
		return uuid.Nil, fmt.Errorf("%w: persist token: %v", ErrSessionUnavailable, err)
	}

	log.Info("session_created", slog.String("session_id", s.ID.String()))
	p.id = s.ID
	return p.id, nil
}

// ID returns the resolved id, or uuid.Nil before the first successful Resolve.
func (p *Provider) ID() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}
