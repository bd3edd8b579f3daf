package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// RequestLogger puts a request-scoped logger into the context and writes
// one line per request. The error handler runs here so the logged status
// matches what the client receives.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With(
				"method", c.Request().Method,
				"path", c.Path(),
				"url", c.Request().URL.Path,
				"remote_ip", c.RealIP(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			if id := c.Param("order_id"); id != "" {
				l = l.With("order_id", id)
			}

			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status

			attrs := []any{"status", status, "duration_ms", time.Since(start).Milliseconds()}
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				attrs = append(attrs, "user_id", uid)
			}

			switch {
			case status >= 500:
				if err != nil {
					attrs = append(attrs, "error", err.Error())
				}
				l.Error("request_completed", attrs...)
			case status >= 400:
				l.Warn("request_completed", attrs...)
			default:
				l.Info("request_completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}
