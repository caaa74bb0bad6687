package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rohitxdev/nftsol-api/deps/cache"
	"github.com/rohitxdev/nftsol-api/deps/config"
	"github.com/rohitxdev/nftsol-api/deps/postgres"
	"github.com/rohitxdev/nftsol-api/deps/redis"
	"github.com/rohitxdev/nftsol-api/deps/reporter"
	"github.com/rohitxdev/nftsol-api/handler"
	"github.com/rohitxdev/nftsol-api/util"
)

const (
	healthCacheExpiry  = 5 * time.Second
	dependencyAttempts = 3
	dependencyBackoff  = 500 * time.Millisecond
)

// Run loads the config and serves until SIGINT or SIGTERM. args are passed through as-is and only logged.
func Run(args []string) error {
	signals := []os.Signal{os.Interrupt, syscall.SIGTERM}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer func() {
		cancel()
		signal.Reset(signals...)
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(NewLogger(os.Stdout, cfg.Debug))

	return run(ctx, cfg, reporterOptions(cfg), args)
}

func reporterOptions(cfg *config.Config) reporter.Options {
	return reporter.Options{
		DSN:              cfg.SentryDSN,
		Release:          cfg.Release(),
		Debug:            cfg.Debug,
		TracesSampleRate: cfg.TracesSampleRate(),
		KeepRequestBody:  cfg.AppEnv == config.EnvDevelopment,
	}
}

func run(ctx context.Context, cfg *config.Config, ro reporter.Options, args []string) error {
	rep := reporter.New(ro)
	defer func() {
		if !rep.Flush(cfg.SentryFlushTimeout) {
			slog.Warn("error reporter did not flush all events before timeout")
		}
	}()
	defer rep.Recover(cfg.SentryFlushTimeout)
	slog.Info("initialized error reporter", slog.String("environment", reporter.Environment), slog.Bool("enabled", rep.Enabled()))

	healthCache, err := cache.New[handler.HealthReport](healthCacheExpiry)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer healthCache.Close()

	var pg *pgxpool.Pool
	if cfg.PostgresURL != "" {
		pg, err = util.Retry(ctx, func(attempt uint) (*pgxpool.Pool, error) {
			return postgres.New(ctx, cfg.PostgresURL)
		}, dependencyAttempts, dependencyBackoff)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres database: %w", err)
		}
		defer pg.Close()
		slog.Info("connected to postgres database")
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = util.Retry(ctx, func(attempt uint) (*goredis.Client, error) {
			return redis.New(ctx, cfg.RedisURL)
		}, dependencyAttempts, dependencyBackoff)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		slog.Info("connected to redis")
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		rep,
	)

	h, err := handler.New(&handler.Services{
		Config:   cfg,
		Reporter: rep,
		Cache:    healthCache,
		Postgres: pg,
		Redis:    rdb,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create http handler: %w", err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to acquire TCP listener: %w", err)
	}

	server := &http.Server{
		Handler: h,
		ConnState: func(c net.Conn, cs http.ConnState) {
			slog.Debug("HTTP connection state changed", "remote_address", c.RemoteAddr().String(), "state", cs.String())
		},
		ReadTimeout: time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", serveErr)
		}
		close(errCh)
	}()

	slog.Info("application is running",
		slog.Group("app", slog.String("name", cfg.AppName), slog.String("version", cfg.AppVersion), slog.String("environment", cfg.AppEnv)),
		slog.Group("build", slog.String("type", cfg.BuildType), slog.Time("timestamp", cfg.BuildTimestamp)),
		slog.Group("http", slog.String("address", listener.Addr().String())),
		slog.Group("runtime", slog.String("platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))),
		slog.Any("args", args),
	)

	if id := runProbe(rep); id != nil {
		slog.Debug("self-test event captured", slog.String("event_id", string(*id)))
	}

	select {
	case <-ctx.Done():
		slog.Info("attempting to shut down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server gracefully: %w", err)
		}

		slog.Info("application was shut down gracefully")
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
