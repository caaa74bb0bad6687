package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rohitxdev/nftsol-api/deps/cache"
	"github.com/rohitxdev/nftsol-api/deps/config"
	"github.com/rohitxdev/nftsol-api/deps/reporter"
	"github.com/rohitxdev/nftsol-api/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type recorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *recorder) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Events() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

type httpRequestOpts struct {
	query   map[string]string
	body    echo.Map
	headers map[string]string
	method  string
	path    string
}

func createHttpRequest(opts *httpRequestOpts) (*http.Request, error) {
	url, err := url.Parse(opts.path)
	if err != nil {
		return nil, err
	}
	q := url.Query()
	for key, value := range opts.query {
		q.Set(key, value)
	}
	url.RawQuery = q.Encode()
	j, err := json.Marshal(opts.body)
	if err != nil {
		return nil, err
	}
	req := httptest.NewRequest(opts.method, url.String(), bytes.NewReader(j))
	for key, value := range opts.headers {
		req.Header.Set(key, value)
	}
	return req, err
}

type testEnv struct {
	e       *echo.Echo
	rec     *recorder
	metrics *prometheus.Registry
}

func newTestEnv(t *testing.T, modify func(*handler.Services)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.AppName = "nftsol-api"
	cfg.AppVersion = "1.0.0"

	rec := &recorder{}
	rep := reporter.New(reporter.Options{
		DSN:        cfg.SentryDSN,
		BeforeSend: rec.beforeSend,
	})

	c, err := cache.New[handler.HealthReport](5 * time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	metrics := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(rep))

	svc := &handler.Services{
		Config:   &cfg,
		Reporter: rep,
		Cache:    c,
		Metrics:  metrics,
	}
	if modify != nil {
		modify(svc)
	}

	e, err := handler.New(svc)
	require.NoError(t, err)

	return &testEnv{e: e, rec: rec, metrics: metrics}
}

func (te *testEnv) do(t *testing.T, opts *httpRequestOpts) *httptest.ResponseRecorder {
	t.Helper()
	req, err := createHttpRequest(opts)
	require.NoError(t, err)
	res := httptest.NewRecorder()
	te.e.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.Data
}

func TestNew(t *testing.T) {
	_, err := handler.New(&handler.Services{})
	assert.Error(t, err)
}

func TestBaseRoutes(t *testing.T) {
	te := newTestEnv(t, nil)

	t.Run("GET /config", func(t *testing.T) {
		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/config"})
		assert.Equal(t, http.StatusOK, res.Code)
		assert.NotEmpty(t, res.Header().Get(echo.HeaderXRequestID))

		cc := decode[handler.ClientConfig](t, res)
		assert.Equal(t, "nftsol-api", cc.AppName)
		assert.Equal(t, "1.0.0", cc.AppVersion)
		assert.Equal(t, config.EnvProduction, cc.Env)
		assert.Equal(t, "production", cc.ReporterEnvironment)
	})

	t.Run("GET /health without dependencies", func(t *testing.T) {
		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/health"})
		assert.Equal(t, http.StatusOK, res.Code)

		report := decode[handler.HealthReport](t, res)
		assert.Equal(t, "healthy", report.Status)
		assert.Equal(t, "disabled", report.Services["postgres"].Status)
		assert.Equal(t, "disabled", report.Services["redis"].Status)
		assert.True(t, report.Environment.ReporterEnabled)
		assert.False(t, report.Environment.HasDatabaseURL)
	})

	t.Run("GET /health is cached", func(t *testing.T) {
		first := decode[handler.HealthReport](t, te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/health"}))
		second := decode[handler.HealthReport](t, te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/health"}))
		assert.True(t, first.Timestamp.Equal(second.Timestamp))
	})

	t.Run("GET /metrics", func(t *testing.T) {
		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/metrics"})
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Contains(t, res.Body.String(), "api_requests_total")
	})

	t.Run("Unknown route", func(t *testing.T) {
		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/nope"})
		assert.Equal(t, http.StatusNotFound, res.Code)
		assert.Empty(t, te.rec.Events())
	})
}

func TestHealthDegraded(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	te := newTestEnv(t, func(svc *handler.Services) {
		svc.Redis = client
		svc.Config.RedisURL = "redis://127.0.0.1:1"
	})

	res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	report := decode[handler.HealthReport](t, res)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "down", report.Services["redis"].Status)
	assert.NotEmpty(t, report.Services["redis"].Error)
	assert.Equal(t, "disabled", report.Services["postgres"].Status)
	assert.True(t, report.Environment.HasRedisURL)
}

func TestErrorReporting(t *testing.T) {
	t.Run("Server error is reported once", func(t *testing.T) {
		te := newTestEnv(t, nil)
		te.e.GET("/fail", func(c echo.Context) error {
			return errors.New("db exploded")
		})

		res := te.do(t, &httpRequestOpts{
			method: http.MethodGet,
			path:   "/fail",
			headers: map[string]string{
				"Authorization": "Bearer secret",
				"Accept":        "text/plain",
				"User-Agent":    "handler-test",
			},
		})
		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, res.Body.String())

		events := te.rec.Events()
		require.Len(t, events, 1)
		require.NotEmpty(t, events[0].Exception)
		assert.Equal(t, "db exploded", events[0].Exception[len(events[0].Exception)-1].Value)
		assert.Equal(t, "production", events[0].Environment)
		assert.Equal(t, res.Header().Get(echo.HeaderXRequestID), events[0].Tags["request_id"])

		require.NotNil(t, events[0].Request)
		assert.NotContains(t, events[0].Request.Headers, "Authorization")
		assert.NotContains(t, events[0].Request.Headers, "Accept")
		assert.Equal(t, "handler-test", events[0].Request.Headers["User-Agent"])

		metrics := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/metrics"})
		assert.Contains(t, metrics.Body.String(), `reporter_events_total{kind="exception"} 1`)
	})

	t.Run("Client error is not reported", func(t *testing.T) {
		te := newTestEnv(t, nil)
		te.e.GET("/teapot", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusTeapot, "short and stout")
		})

		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/teapot"})
		assert.Equal(t, http.StatusTeapot, res.Code)
		assert.JSONEq(t, `{"error":"short and stout"}`, res.Body.String())
		assert.Empty(t, te.rec.Events())
	})

	t.Run("Panic is reported once", func(t *testing.T) {
		te := newTestEnv(t, nil)
		te.e.GET("/panic", func(c echo.Context) error {
			panic("handler blew up")
		})

		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/panic"})
		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.Len(t, te.rec.Events(), 1)
	})

	t.Run("Request hub is a clone of the reporter hub", func(t *testing.T) {
		te := newTestEnv(t, nil)
		var hub *sentry.Hub
		te.e.GET("/hub", func(c echo.Context) error {
			hub = sentryecho.GetHubFromContext(c)
			return c.NoContent(http.StatusNoContent)
		})

		res := te.do(t, &httpRequestOpts{method: http.MethodGet, path: "/hub"})
		assert.Equal(t, http.StatusNoContent, res.Code)
		require.NotNil(t, hub)
		assert.NotSame(t, sentry.CurrentHub(), hub)
		require.NotNil(t, hub.Client())
		assert.Equal(t, reporter.Environment, hub.Client().Options().Environment)
	})
}

func TestBodyLimit(t *testing.T) {
	te := newTestEnv(t, nil)
	te.e.POST("/echo", func(c echo.Context) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.Bind(&body); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, handler.APISuccessResponse{Data: body.Name})
	})

	t.Run("Body within limit is decoded", func(t *testing.T) {
		res := te.do(t, &httpRequestOpts{
			method:  http.MethodPost,
			path:    "/echo",
			body:    echo.Map{"name": "solana"},
			headers: map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON},
		})
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "solana", decode[string](t, res))
	})

	t.Run("Oversized body is rejected", func(t *testing.T) {
		req, err := createHttpRequest(&httpRequestOpts{
			method:  http.MethodPost,
			path:    "/echo",
			body:    echo.Map{"name": "solana"},
			headers: map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON},
		})
		require.NoError(t, err)
		req.ContentLength = 51 << 20

		res := httptest.NewRecorder()
		te.e.ServeHTTP(res, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, res.Code)
		assert.Empty(t, te.rec.Events())
	})
}
