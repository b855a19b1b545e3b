package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/classboard/classboard/modules/notifications"
	"github.com/classboard/classboard/pkg/config"
	"github.com/classboard/classboard/pkg/httpserver"
	"github.com/classboard/classboard/pkg/logger"
	"github.com/classboard/classboard/pkg/pg"
	"github.com/classboard/classboard/pkg/redis"
)

type appConfig struct {
	Env          string        `env:"APP_ENV" envDefault:"development"`
	PostgresURL  string        `env:"PG_CONN_URL"`               // empty in development falls back to in-memory storage
	RedisEnabled bool          `env:"BRIDGE_ENABLED" envDefault:"false"`
	SweepEvery   time.Duration `env:"HUB_SWEEP_INTERVAL" envDefault:"30s"`
}

// requestIDAttr stamps the chi request ID onto every log record emitted
// within a request's context.
func requestIDAttr(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Env, "classboard-notifications"),
		logger.WithContextExtractors(requestIDAttr),
	)
	logger.SetAsDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, appCfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	healthchecks := make([]func(context.Context) error, 0, 2)

	// Storage: Postgres when configured, in-memory otherwise (dev mode).
	var storage notifications.Storage
	if appCfg.PostgresURL != "" {
		var pgCfg pg.Config
		config.MustLoad(&pgCfg)

		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}

		storage = notifications.NewPostgresStorage(pool)
		healthchecks = append(healthchecks, pg.Healthcheck(pool))
	} else {
		log.Warn("PG_CONN_URL not set, using in-memory notification storage")
		storage = notifications.NewMemoryStorage()
	}

	hub := notifications.NewHub(notifications.WithHubLogger(log))
	defer hub.CloseAll()

	// Dead connections are evicted lazily on send failure; the periodic
	// sweep bounds how long a half-open socket can linger in the registry.
	go func() {
		ticker := time.NewTicker(appCfg.SweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := hub.Sweep(); evicted > 0 {
					log.Info("hub sweep evicted dead connections", slog.Int("evicted", evicted))
				}
			}
		}
	}()

	// The hub delivers in-process; with the bridge enabled, pushes also
	// reach recipients connected to other instances.
	var pusher notifications.Pusher = hub
	if appCfg.RedisEnabled {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)

		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		bridge := notifications.NewBridge(client, hub, notifications.WithBridgeLogger(log))
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("notification bridge stopped", logger.Error(err))
			}
		}()

		pusher = bridge
		healthchecks = append(healthchecks, redis.Healthcheck(client))
	}

	svc := notifications.NewService(storage,
		notifications.WithPusher(pusher),
		notifications.WithServiceLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log, healthchecks...))
	r.Mount("/", notifications.Router(svc, hub, log))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("notification server listening", slog.String("addr", httpCfg.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("notification server stopped")
		}),
	)

	return srv.Run(ctx, r)
}
