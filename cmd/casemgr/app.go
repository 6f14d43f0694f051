package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/aicare/casemgr/config"
	educationh "github.com/aicare/casemgr/internal/handler/education"
	"github.com/aicare/casemgr/internal/handler/health"
	journalh "github.com/aicare/casemgr/internal/handler/journal"
	patienth "github.com/aicare/casemgr/internal/handler/patient"
	"github.com/aicare/casemgr/internal/handler/prometheus"
	"github.com/aicare/casemgr/internal/handler/report"
	statsh "github.com/aicare/casemgr/internal/handler/stats"
	"github.com/aicare/casemgr/internal/middleware"
	"github.com/aicare/casemgr/internal/notify"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/router"
	"github.com/aicare/casemgr/internal/service/education"
	"github.com/aicare/casemgr/internal/service/journal"
	"github.com/aicare/casemgr/internal/service/patient"
	"github.com/aicare/casemgr/internal/stats"
	"github.com/aicare/casemgr/internal/store"
	"github.com/aicare/casemgr/internal/store/memory"
	"github.com/aicare/casemgr/internal/store/postgres"
	"github.com/aicare/casemgr/internal/triage"
	"github.com/aicare/casemgr/pkg/auth"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/messaging"
	"github.com/aicare/casemgr/pkg/messaging/redis"
	"github.com/aicare/casemgr/pkg/metrics"
	"github.com/aicare/casemgr/pkg/security"
)

// app is everything serve needs, built from one config.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Guarded
	repo    *repository.Repository
	events  *messaging.BrokerAdapter
	router  *router.Router
	closers []io.Closer
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	// middleware logs through the global zerolog logger
	log.Logger = l.ZL
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	return l
}

// openStore returns the raw backing store for the configured driver.
func openStore(ctx context.Context, cfg *config.Config, closers *[]io.Closer) (store.Store, func(context.Context) error, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, db)
		pg := postgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return pg, pg.Ping, nil
	default:
		return memory.New(), nil, nil
	}
}

func guardConfig(cfg config.StoreConfig) store.GuardConfig {
	return store.GuardConfig{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout,
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: newLogger(cfg.Log)}

	prom := prometheus.New()
	m := metrics.New("casemgr", prom.Registry())

	raw, ping, err := openStore(ctx, cfg, &a.closers)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store.NewGuarded(raw, guardConfig(cfg.Store), m, a.log.With("store"))

	if err := repository.Setup(ctx, a.store, a.log.With("setup")); err != nil {
		a.Close()
		return nil, fmt.Errorf("schema check failed: %w", err)
	}

	checks := map[string]health.Check{
		"store": func(context.Context) error {
			if a.store.BreakerState() == "open" {
				return errors.New("circuit breaker open")
			}
			return nil
		},
	}
	if ping != nil {
		checks["database"] = ping
	}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, a.log.With("redis"))
		if err != nil {
			a.Close()
			return nil, err
		}
		checks["redis"] = rb.Ping
		broker = rb
	} else {
		broker = messaging.NewMemoryBroker()
	}
	a.events = messaging.NewBrokerAdapter(broker, cfg.Redis.Channel)
	a.closers = append(a.closers, a.events)

	a.repo = repository.New(a.store,
		repository.Config{TTL: cfg.Cache.TTL, CleanupInterval: cfg.Cache.CleanupInterval},
		repository.WithPublisher(a.events),
		repository.WithLogger(a.log.With("repository")),
		repository.WithMetrics(m),
	)

	engineOpts := []triage.Option{
		triage.WithPublisher(a.events),
		triage.WithLogger(a.log.With("triage")),
		triage.WithMetrics(m),
	}
	if cfg.SMTP.Host != "" && len(cfg.SMTP.To) > 0 {
		mailer := notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		engineOpts = append(engineOpts, triage.WithNotifier(notify.NewAlertNotifier(mailer, cfg.SMTP.To, a.log.With("notify"))))
	}
	engine := triage.NewEngine(a.repo, engineOpts...)

	jwt := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	patients := patient.NewService(a.repo, hasher, patient.Config{HashPasswords: cfg.Security.HashPasswords}, a.log.With("patients"))

	a.router = router.NewRouter(middleware.NewAuthMiddleware(jwt), router.Handlers{
		Patient:   patienth.NewHandler(patients, jwt),
		Report:    report.NewHandler(engine),
		Education: educationh.NewHandler(education.NewService(a.repo, a.log.With("education"))),
		Journal:   journalh.NewHandler(journal.NewService(a.repo, a.log.With("journal"))),
		Stats:     statsh.NewHandler(stats.NewService(a.repo, a.log.With("stats"))),
		Health:    health.NewHandler(checks),
		Metrics:   prom,
	}, m, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		Debug:            a.log.ZL.GetLevel() <= zerolog.DebugLevel,
	})
	return a, nil
}

// listen feeds peer invalidations into the repository until ctx ends.
func (a *app) listen(ctx context.Context) error {
	return a.events.Listen(ctx, a.log.With("events"), a.repo.HandleMessage)
}

func (a *app) Close() {
	closeAll(a.closers, a.log)
}

// closeAll closes in reverse order of opening.
func closeAll(closers []io.Closer, log *logger.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn(err, "close failed")
		}
	}
}
