package handler

import (
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rohitxdev/nftsol-api/deps/reporter"
)

// Key under which sentryecho.GetHubFromContext looks up the request hub.
const sentryEchoHubKey = "sentry"

// injectHub gives each request its own clone of the reporter hub, so sentryecho never falls back to the global hub.
func injectHub(r *reporter.Reporter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			hub := sentry.GetHubFromContext(req.Context())
			if hub == nil {
				hub = r.Hub().Clone()
				c.SetRequest(req.WithContext(sentry.SetHubOnContext(req.Context(), hub)))
			}
			c.Set(sentryEchoHubKey, hub)
			return next(c)
		}
	}
}

func logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	status := v.Status
	var errStr string
	if httpErr, ok := v.Error.(*echo.HTTPError); ok {
		if httpErr.Code == http.StatusInternalServerError {
			errStr = httpErr.Error()
		}
	} else if v.Error != nil {
		// Due to a bug in echo, when the error is not an echo.HTTPError, even though the status code sent is 500, it's logged as 200 in this middleware.
		// We need to manually set the status code in the log to 500.
		status = http.StatusInternalServerError
		errStr = v.Error.Error()
	}

	attrs := []any{
		slog.String("id", v.RequestID),
		slog.String("client_ip", v.RemoteIP),
		slog.String("protocol", v.Protocol),
		slog.String("uri", v.URI),
		slog.String("method", v.Method),
		slog.Int64("duration_ms", v.Latency.Milliseconds()),
		slog.Int64("res_bytes", v.ResponseSize),
		slog.Int("status", status),
	}
	if v.Host != "" {
		attrs = append(attrs, slog.String("host", v.Host))
	}
	if v.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", v.UserAgent))
	}
	if v.Referer != "" {
		attrs = append(attrs, slog.String("referer", v.Referer))
	}
	if errStr != "" {
		attrs = append(attrs, slog.String("error", errStr))
	}

	slog.Info("HTTP request", attrs...)
	return nil
}
