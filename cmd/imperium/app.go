package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/imperium-ai/imperium/config"
	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/application/eventhandler"
	"github.com/imperium-ai/imperium/internal/application/query"
	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/internal/infrastructure/curriculum"
	"github.com/imperium-ai/imperium/internal/infrastructure/messaging"
	"github.com/imperium-ai/imperium/internal/infrastructure/metrics"
	"github.com/imperium-ai/imperium/internal/infrastructure/persistence/memory"
	"github.com/imperium-ai/imperium/internal/infrastructure/persistence/postgres"
	rediscache "github.com/imperium-ai/imperium/internal/infrastructure/persistence/redis"
	"github.com/imperium-ai/imperium/internal/interface/http/handlers"
	"github.com/imperium-ai/imperium/pkg/circuitbreaker"
	"github.com/imperium-ai/imperium/pkg/logger"
	"github.com/imperium-ai/imperium/pkg/retry"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// repositories is the set of storage ports, whatever the backend.
type repositories struct {
	tx      command.Transactor
	users   progression.Repository
	gates   gate.Repository
	trials  trial.ProgressRepository
	tasks   task.Repository
	journal journal.Repository
	council council.Repository
}

// queries bundles the read side.
type queries struct {
	progress *query.GetProgressHandler
	path     *query.GetTrialPathHandler
	journal  *query.ListJournalHandler
	tasks    *query.ListTasksHandler
	cases    *query.ListCouncilCasesHandler
}

// app holds everything a CLI command needs.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	clock      timeutil.Clock
	engine     *progression.Engine
	curriculum *trial.Curriculum
	features   *config.FeatureFlags
	metrics    *metrics.Metrics
	bus        *messaging.InMemoryEventBus
	health     *handlers.CompositeHealthChecker
	// migrator is nil unless the postgres backend is selected.
	migrator *postgres.Migrator

	commands *command.Handlers
	queries  queries

	closers []func() error
}

// newLogger builds the process logger. CLI output goes to stdout, so logs
// go to stderr.
func newLogger(cfg *config.Config, quiet bool) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if quiet && level < logger.LevelWarn {
		level = logger.LevelWarn
	}
	return logger.New(logger.Options{
		Output: os.Stderr,
		Level:  level,
		Pretty: strings.EqualFold(cfg.Observability.LogFormat, "text"),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// newApp wires the application for cfg.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		clock:    timeutil.NewSystemClock(cfg.App.Location()),
		engine:   progression.NewEngine(nil),
		features: config.NewFeatureFlags(cfg.Features),
		health:   handlers.NewCompositeHealthChecker(cfg.App.Version),
	}

	cur, err := curriculum.Load(cfg.Progression.CurriculumPath)
	if err != nil {
		return nil, fmt.Errorf("load curriculum: %w", err)
	}
	a.curriculum = cur

	repos, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	repos = a.wrapRedis(ctx, repos)

	busCfg := messaging.InMemoryEventBusConfig{
		Logger: log,
		Middlewares: []messaging.Middleware{
			messaging.RecoverMiddleware(log),
			messaging.LoggingMiddleware(log),
		},
	}
	var recorder eventhandler.Recorder
	if cfg.Observability.MetricsEnabled {
		a.metrics = metrics.NewDefault()
		busCfg.Observer = a.metrics
		recorder = a.metrics
	}
	a.bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, a.bus.Close)

	if err := eventhandler.Register(a.bus,
		eventhandler.NewOnProgressionHandler(recorder, log, eventhandler.DefaultProgressionConfig()),
		eventhandler.NewActivityMetricsHandler(recorder, log),
	); err != nil {
		a.Close()
		return nil, fmt.Errorf("register event handlers: %w", err)
	}

	a.commands = command.NewHandlers(command.Deps{
		Engine:     a.engine,
		Curriculum: cur,
		Users:      repos.users,
		Gates:      repos.gates,
		Trials:     repos.trials,
		Tasks:      repos.tasks,
		Journal:    repos.journal,
		Council:    repos.council,
		Tx:         repos.tx,
		Clock:      a.clock,
		Features:   a.features,
		Rules: command.Rules{
			XPPerTask:    cfg.Progression.XPPerTask,
			XPPerCouncil: cfg.Progression.XPPerCouncil,
			PassingScore: cfg.Progression.TrialPassingScore,
			Dilemma: council.Limits{
				Min: cfg.Progression.DilemmaMinLength,
				Max: cfg.Progression.DilemmaMaxLength,
			},
		},
		Publisher: a.bus,
		Logger:    log,
	})

	a.queries = queries{
		progress: query.NewGetProgressHandler(a.engine, cur, repos.users, repos.gates, repos.trials, repos.tasks, a.clock),
		path:     query.NewGetTrialPathHandler(cur, repos.trials),
		journal:  query.NewListJournalHandler(repos.journal),
		tasks:    query.NewListTasksHandler(repos.tasks, a.clock),
		cases:    query.NewListCouncilCasesHandler(repos.council),
	}

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (repositories, error) {
	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		db := a.cfg.Database
		pgCfg := postgres.Config{
			URL:               db.URL,
			MaxConns:          db.MaxConns,
			MinConns:          db.MinConns,
			MaxConnLifetime:   db.ConnMaxLifetime,
			MaxConnIdleTime:   db.ConnMaxIdleTime,
			HealthCheckPeriod: postgres.DefaultConfig(db.URL).HealthCheckPeriod,
			QueryTimeout:      db.QueryTimeout,
		}
		conn, err := retry.DoWithData(ctx, a.connectRetrier("postgres"), func(ctx context.Context) (*postgres.Connection, error) {
			return postgres.NewConnection(ctx, pgCfg)
		})
		if err != nil {
			return repositories{}, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })
		a.health.AddCheck("postgres", handlers.PingCheck(conn))

		a.migrator = postgres.NewMigrator(conn)
		if db.AutoMigrate {
			n, err := a.migrator.Migrate(ctx)
			if err != nil {
				return repositories{}, fmt.Errorf("run migrations: %w", err)
			}
			if n > 0 {
				a.log.Info("migrations applied", logger.Int("count", n))
			}
		}

		r := postgres.NewRepositories(conn, a.engine)
		return repositories{
			tx:      conn,
			users:   r.Progression,
			gates:   r.Gates,
			trials:  r.Trials,
			tasks:   r.Tasks,
			journal: r.Journal,
			council: r.Council,
		}, nil

	default:
		store, err := memory.Open(a.cfg.Storage.DataFile, a.engine)
		if err != nil {
			return repositories{}, fmt.Errorf("open data file: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.health.AddCheck("storage", handlers.PingCheck(store))

		return repositories{
			tx:      store,
			users:   store.Progression(),
			gates:   store.Gates(),
			trials:  store.Trials(),
			tasks:   store.Tasks(),
			journal: store.Journal(),
			council: store.Council(),
		}, nil
	}
}

// wrapRedis puts the redis cache in front of progression and gate lookups.
// A redis outage at startup disables the cache instead of failing.
func (a *app) wrapRedis(ctx context.Context, repos repositories) repositories {
	if !a.cfg.Redis.Enabled {
		return repos
	}

	client, err := retry.DoWithData(ctx, a.connectRetrier("redis"), func(ctx context.Context) (*goredis.Client, error) {
		return rediscache.NewClient(ctx, a.cfg.Redis)
	})
	if err != nil {
		a.log.Warn("redis unavailable, caching disabled", logger.Err(err))
		return repos
	}
	a.closers = append(a.closers, client.Close)

	breaker := circuitbreaker.Cache(rediscache.IsFailure, func(name string, from, to circuitbreaker.State) {
		a.log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	cache := rediscache.NewCache(client, a.cfg.Redis.KeyPrefix).WithBreaker(breaker)
	a.health.AddCheck("redis", handlers.PingCheck(cache))

	repos.users = rediscache.NewProgressionRepository(repos.users, cache, a.engine, a.cfg.Redis.CacheTTL, a.log)
	repos.gates = rediscache.NewGateRepository(repos.gates, cache, a.clock, a.log)
	return repos
}

func (a *app) connectRetrier(target string) *retry.Retrier {
	return retry.Connect(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		a.log.Warn("connection failed, retrying",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}))
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Err(err))
		}
	}
	a.closers = nil
}
