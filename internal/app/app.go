// Package app assembles the storage, services and background sweep shared
// by the API server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/dashboard"
	"github.com/skillswap/backend/internal/handlers"
	"github.com/skillswap/backend/internal/jobs"
	"github.com/skillswap/backend/internal/lease"
	"github.com/skillswap/backend/internal/ledger"
	"github.com/skillswap/backend/internal/registry"
	"github.com/skillswap/backend/internal/repository"
	"github.com/skillswap/backend/internal/repository/memory"
	"github.com/skillswap/backend/internal/router"
	"github.com/skillswap/backend/internal/services"
)

type accountStore interface {
	auth.Repository
	ledger.AccountRepo
	dashboard.AccountReader
}

type creditStore interface {
	ledger.CreditRepo
	ledger.AuditCreditRepo
}

type bookingStore interface {
	services.BookingRepo
	jobs.OrphanFinder
}

type skillStore interface {
	services.SkillLookup
	registry.Repository
}

type stores struct {
	db       services.TxBeginner
	accounts accountStore
	credits  creditStore
	bookings bookingStore
	skills   skillStore
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Auth     auth.Service
	Bookings *services.BookingService
	Skills   registry.Service
	Auditor  *ledger.Auditor
	Sweeper  *jobs.Sweeper

	st     stores
	redis  *redis.Client
	river  *river.Client[pgx.Tx]
	cancel context.CancelFunc
}

// Open connects storage and builds every service. With the postgres driver
// the schema is applied before returning.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		s := memory.New()
		a.st = stores{db: s, accounts: s.Accounts, credits: s.Credits, bookings: s.Bookings, skills: s.Skills}
		logger.Warn("using in-memory storage; data is lost on exit")
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("cannot reach PostgreSQL: %w", err)
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.Pool = pool
		a.st = stores{
			db:       pool,
			accounts: repository.NewAccountRepo(pool),
			credits:  repository.NewCreditRepo(pool),
			bookings: repository.NewBookingRepo(pool),
			skills:   repository.NewSkillRepo(pool),
		}
		logger.Info("connected to PostgreSQL")
	}

	var locker lease.Locker = lease.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		client, err := lease.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		locker = lease.NewRedisLocker(client, "skillswap:lease:")
	}

	l := ledger.NewService(a.st.accounts, a.st.credits)
	a.Auditor = ledger.NewAuditor(a.st.accounts, a.st.credits)
	a.Auth = auth.NewService(a.st.db, a.st.accounts, l, cfg.JWT.Secret, cfg.Credits.InitialGrant)
	a.Bookings = services.NewBookingService(a.st.db, a.st.bookings, a.st.skills, l, logger)
	a.Skills = registry.NewService(a.st.skills)
	a.Sweeper = jobs.NewSweeper(a.st.bookings, a.Bookings, locker, cfg.Sweep.LeaseTTL, logger)
	return a, nil
}

// Handler builds the HTTP API.
func (a *App) Handler() (http.Handler, error) {
	v, err := services.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("compile request schemas: %w", err)
	}
	return router.New(router.Handlers{
		Auth:      auth.NewHandler(a.Auth, a.Logger),
		Skills:    registry.NewHandler(a.Skills, a.Logger),
		Bookings:  handlers.NewBookingHandler(a.Bookings, a.Logger),
		Dashboard: dashboard.NewHandler(a.st.accounts, a.Auditor, a.Logger),
	}, a.Auth, v, a.Logger), nil
}

// MigrateRiver applies river's own tables. It is a no-op on the memory store.
func (a *App) MigrateRiver(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(a.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	return nil
}

// StartSweep runs the orphan sweep in the background: as a river periodic
// job on Postgres, or a ticker loop on the memory store.
func (a *App) StartSweep(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	if a.Pool == nil {
		go a.Sweeper.RunEvery(ctx, a.Config.Sweep.Interval)
		return nil
	}
	if err := a.MigrateRiver(ctx); err != nil {
		return err
	}
	client, err := jobs.NewClient(a.Pool, a.Sweeper, a.Config.Sweep.Interval)
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	a.river = client
	return client.Start(ctx)
}

// Close stops the sweep and releases connections.
func (a *App) Close() {
	if a.river != nil {
		if err := a.river.Stop(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("river client stop failed", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
