package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rohitxdev/nftsol-api/deps/reporter"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	serviceUp       = "up"
	serviceDown     = "down"
	serviceDisabled = "disabled"

	healthCacheKey     = "health"
	healthCheckTimeout = 2 * time.Second
)

type ServiceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthEnvironment struct {
	AppEnv          string `json:"app_env"`
	ReporterEnabled bool   `json:"reporter_enabled"`
	HasDatabaseURL  bool   `json:"has_database_url"`
	HasRedisURL     bool   `json:"has_redis_url"`
}

type HealthReport struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Services    map[string]ServiceStatus `json:"services"`
	Environment HealthEnvironment        `json:"environment"`
}

// @Summary Health check
// @Description Reports the status of every configured dependency. Responds with 503 when one of them is down.
// @Router /health [get]
// @Success 200 {object} APISuccessResponse
// @Failure 503 {object} APISuccessResponse
func (h *Handler) GetHealth(c echo.Context) error {
	// The check outlives the request that triggered it: other requests may be waiting on the same result.
	ctx := context.WithoutCancel(c.Request().Context())

	report, err := h.Cache.GetOrSet(healthCacheKey, func() (HealthReport, error) {
		return h.checkHealth(ctx), nil
	})
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	code := http.StatusOK
	if report.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, APISuccessResponse{Data: report})
}

func (h *Handler) checkHealth(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	report := HealthReport{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]ServiceStatus, 2),
		Environment: HealthEnvironment{
			AppEnv:          h.Config.AppEnv,
			ReporterEnabled: h.Reporter.Enabled(),
			HasDatabaseURL:  h.Config.PostgresURL != "",
			HasRedisURL:     h.Config.RedisURL != "",
		},
	}

	var pgPing, redisPing func(context.Context) error
	if h.Postgres != nil {
		pgPing = h.Postgres.Ping
	}
	if h.Redis != nil {
		redisPing = func(ctx context.Context) error {
			return h.Redis.Ping(ctx).Err()
		}
	}

	report.Services["postgres"] = probeService(ctx, pgPing)
	report.Services["redis"] = probeService(ctx, redisPing)

	for _, s := range report.Services {
		if s.Status == serviceDown {
			report.Status = statusDegraded
		}
	}

	return report
}

func probeService(ctx context.Context, ping func(context.Context) error) ServiceStatus {
	if ping == nil {
		return ServiceStatus{Status: serviceDisabled}
	}
	if err := ping(ctx); err != nil {
		return ServiceStatus{Status: serviceDown, Error: err.Error()}
	}
	return ServiceStatus{Status: serviceUp}
}

type ClientConfig struct {
	AppName             string `json:"app_name"`
	AppVersion          string `json:"app_version"`
	Env                 string `json:"env"`
	ReporterEnvironment string `json:"reporter_environment"`
}

// @Summary Get config
// @Description Get client config.
// @Router /config [get]
// @Success 200 {object} APISuccessResponse
func (h *Handler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, APISuccessResponse{
		Data: ClientConfig{
			AppName:             h.Config.AppName,
			AppVersion:          h.Config.AppVersion,
			Env:                 h.Config.AppEnv,
			ReporterEnvironment: reporter.Environment,
		},
	})
}
