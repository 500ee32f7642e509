package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/gedebog_store/internal/logging"
	"github.com/Skotchmaster/gedebog_store/internal/session"
)

const sessionKey = "session_id"

// SessionMiddleware resolves the guest session from the signed cookie,
// creating one when it is missing or no longer known.
func SessionMiddleware(b session.Backend, codec session.CookieCodec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			id, err := session.NewProvider(b, codec.Store(c)).Resolve(ctx)
			if err != nil {
				logging.FromContext(ctx).With("handler", "session").
					Error("session_resolve_error", "status", http.StatusServiceUnavailable, "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "unable to initialize session, reload")
			}

			c.Set(sessionKey, id)
			req := c.Request().WithContext(logging.IntoContext(ctx, logging.FromContext(ctx).With("session_id", id.String())))
			c.SetRequest(req)
			return next(c)
		}
	}
}

func sessionID(c echo.Context) uuid.UUID {
	id, _ := c.Get(sessionKey).(uuid.UUID)
	return id
}

func parseID(c echo.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
