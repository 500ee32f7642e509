package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PGNotifier publishes changes with pg_notify so that every instance
// listening on the channel (including this one) observes them.
type PGNotifier struct {
	DB      *sql.DB
	Channel string
}

func (n *PGNotifier) Notify(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("realtime: marshal change: %w", err)
	}
	if _, err := n.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.Channel, string(payload)); err != nil {
		return fmt.Errorf("realtime: pg_notify: %w", err)
	}
	return nil
}

// PGListener forwards notifications from a postgres channel into a Hub.
type PGListener struct {
	listener *pq.Listener
	hub      *Hub
	logger   *slog.Logger
}

func NewPGListener(dsn, channel string, hub *Hub, logger *slog.Logger) (*PGListener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := logger.With("component", "realtime.pg_listener", "channel", channel)

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.Warn("listener_event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("realtime: listen %s: %w", channel, err)
	}

	return &PGListener{listener: listener, hub: hub, logger: l}, nil
}

func (p *PGListener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.listener.Notify:
			// nil after a reconnect; changes may have been missed, so wake everyone.
			if n == nil {
				p.broadcastResync()
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
				p.logger.Warn("bad_payload", "error", err)
				continue
			}
			_ = p.hub.Notify(ctx, c)
		case <-time.After(90 * time.Second):
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn("ping_failed", "error", err)
				}
			}()
		}
	}
}

func (p *PGListener) broadcastResync() {
	p.hub.mu.RLock()
	defer p.hub.mu.RUnlock()
	for _, s := range p.hub.subs {
		s.signal()
	}
	p.logger.Info("resync_broadcast", "subscribers", len(p.hub.subs))
}

func (p *PGListener) Close() error {
	return p.listener.Close()
}
