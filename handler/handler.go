package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rohitxdev/nftsol-api/deps/cache"
	"github.com/rohitxdev/nftsol-api/deps/config"
	"github.com/rohitxdev/nftsol-api/deps/reporter"
	"github.com/rohitxdev/nftsol-api/internal/id"
)

// Services are the dependencies shared by all handlers. Postgres and Redis are nil when not configured.
type Services struct {
	Config   *config.Config
	Reporter *reporter.Reporter
	Cache    *cache.Cache[HealthReport]
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *prometheus.Registry
}

type Handler struct {
	*Services
}

const maxRequestBodySize = "50M"

// Set on the echo context once a panic has been reported, so the error handler does not report it twice.
const ctxKeyPanicReported = "panic_reported"

func registerRoutes(e *echo.Echo, h *Handler, metrics *prometheus.Registry) {
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: metrics}))
	e.GET("/health", h.GetHealth)
	e.GET("/config", h.GetConfig)
}

func New(svc *Services) (*echo.Echo, error) {
	if svc.Config == nil || svc.Reporter == nil || svc.Cache == nil {
		return nil, errors.New("config, reporter and cache are required")
	}

	h := Handler{Services: svc}

	metrics := svc.Metrics
	if metrics == nil {
		metrics = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = svc.Config.Debug
	e.JSONSerializer = JSONSerializer{}
	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(false),   // e.g. ipv4 start with 127.
		echo.TrustLinkLocal(false),  // e.g. ipv4 start with 169.254
		echo.TrustPrivateNet(false), // e.g. ipv4 start with 10. or 192.168
	)
	e.HTTPErrorHandler = h.handleError

	//Pre-router middlewares
	e.Pre(middleware.Secure())

	e.Pre(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: svc.Config.AllowedOrigins,
	}))

	e.Pre(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return id.New(id.Request)
		},
	}))

	e.Pre(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogRequestID:    true,
		LogRemoteIP:     true,
		LogProtocol:     true,
		LogURI:          true,
		LogMethod:       true,
		LogStatus:       true,
		LogLatency:      true,
		LogResponseSize: true,
		LogReferer:      true,
		LogUserAgent:    true,
		LogError:        true,
		LogHost:         true,
		LogValuesFunc:   logRequest,
	}))

	e.Pre(middleware.BodyLimit(maxRequestBodySize))

	e.Pre(middleware.RemoveTrailingSlash())

	e.Pre(injectHub(svc.Reporter))

	//Post-router middlewares
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.Contains(c.Request().Header.Get("Accept-Encoding"), "gzip") || strings.HasPrefix(c.Path(), "/metrics")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			c.Set(ctxKeyPanicReported, true)
			slog.Error("http handler panic", slog.String("id", c.Response().Header().Get(echo.HeaderXRequestID)), slog.String("error", err.Error()), slog.String("stack", string(stack)))
			return err
		}},
	))

	// Runs inside Recover: it reports the panic on the request hub, then panics again so Recover writes the 500.
	e.Use(sentryecho.New(sentryecho.Options{
		Repanic: true,
	}))

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "api",
		Registerer: metrics,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	if svc.Config.Debug {
		pprof.Register(e)
	}

	registerRoutes(e, &h, metrics)

	return e, nil
}

func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	res := APIErrorResponse{Error: MsgInternalServerError}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		switch msg := httpErr.Message.(type) {
		case string:
			res.Error = msg
		case error:
			res.Error = msg.Error()
		default:
			res.Error = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		h.reportError(c, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, res)
	}
	if err != nil {
		slog.Error("HTTP error response failure",
			slog.Group("request", slog.String("id", c.Response().Header().Get(echo.HeaderXRequestID))),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) reportError(c echo.Context, err error) {
	if reported, _ := c.Get(ctxKeyPanicReported).(bool); reported {
		return
	}

	hub := sentryecho.GetHubFromContext(c)
	if hub == nil {
		hub = sentry.GetHubFromContext(c.Request().Context())
	}
	if hub == nil {
		hub = h.Reporter.Hub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		scope.SetRequest(c.Request())
		hub.CaptureException(err)
	})
}
