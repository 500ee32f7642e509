package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const keepAliveInterval = 25 * time.Second

// startStream switches the response to text/event-stream and lifts the
// server write timeout for this connection.
func startStream(c echo.Context) {
	res := c.Response()
	_ = http.NewResponseController(res.Writer).SetWriteDeadline(time.Time{})

	h := res.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()
}

func writeEvent(c echo.Context, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func writeKeepAlive(c echo.Context) error {
	res := c.Response()
	if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
		return err
	}
	res.Flush()
	return nil
}
