// Package app assembles the store, the inventory manager, the services and
// the HTTP server from a Config, and owns their lifecycle.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-inventory/internal/config"
	"github.com/iliyamo/cinema-booking-inventory/internal/database"
	"github.com/iliyamo/cinema-booking-inventory/internal/handler"
	"github.com/iliyamo/cinema-booking-inventory/internal/inventory"
	"github.com/iliyamo/cinema-booking-inventory/internal/middleware"
	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/queue"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
	"github.com/iliyamo/cinema-booking-inventory/internal/router"
	"github.com/iliyamo/cinema-booking-inventory/internal/seed"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
	"github.com/iliyamo/cinema-booking-inventory/internal/validation"
)

// App is a fully wired service.
type App struct {
	Echo *echo.Echo

	cfg        config.Config
	log        *log.Logger
	cal        model.Calendar
	store      *repository.Store
	bookings   *service.BookingService
	reconciler *service.Reconciler
	consumer   *queue.Consumer
	db         *sql.DB
	rdb        *redis.Client
}

// Option adjusts wiring, mostly for tests.
type Option func(*wiring)

type wiring struct {
	now   func() time.Time
	redis *redis.Client
}

// WithClock replaces the wall clock used to decide which dates are past.
func WithClock(now func() time.Time) Option {
	return func(w *wiring) { w.now = now }
}

// WithRedis uses rdb instead of dialing cfg.Redis.
func WithRedis(rdb *redis.Client) Option {
	return func(w *wiring) { w.redis = rdb }
}

// New builds the application.  The MySQL mirror, Redis, RabbitMQ and the
// seed file are each optional and enabled by their config keys.
func New(ctx context.Context, cfg config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	var w wiring
	for _, o := range opts {
		o(&w)
	}
	a := &App{cfg: cfg, log: logger}

	cal := model.NewCalendar(cfg.Location)
	if w.now != nil {
		cal.Now = w.now
	}
	a.cal = cal

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store
	inv := inventory.NewManager(store.Shows(), cal)

	var pub service.EventPublisher = service.NopPublisher{}
	if cfg.Events.AMQPURL != "" {
		pub = service.NewAMQPPublisher(cfg.Events.AMQPURL)
		if cfg.Events.ConsumerEnabled {
			a.consumer = &queue.Consumer{URL: cfg.Events.AMQPURL, LogDir: cfg.Events.LogDir, Logger: logger}
		}
	}

	users := service.NewUserService(store, cfg.BcryptCost)
	theatres := service.NewTheatreService(store)
	shows := service.NewShowService(store, inv, cal)
	a.bookings = service.NewBookingService(store, inv, cal, pub, logger)
	a.reconciler = service.NewReconciler(store, cfg.Reconcile, logger)

	if cfg.SeedFile != "" {
		svc := seed.Services{Users: users, Theatres: theatres, Shows: shows, Bookings: a.bookings}
		if _, err := seed.LoadFile(ctx, cfg.SeedFile, svc, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.rdb = w.redis
	if a.rdb == nil && cfg.Redis.Addr != "" {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warnj(log.JSON{"msg": "redis unavailable, cache and rate limit disabled", "error": err.Error()})
		}
		a.rdb = rdb
	}

	a.Echo = a.newEcho(router.Handlers{
		Users:    handler.NewUserHandler(users),
		Theatres: handler.NewTheatreHandler(theatres),
		Shows:    handler.NewShowHandler(shows),
		Bookings: handler.NewBookingHandler(a.bookings),
		Ready:    &handler.ReadyHandler{Checks: a.readyChecks()},
	})
	return a, nil
}

// openStore returns the in-memory store, hydrated from and mirrored to MySQL
// when a database is configured.
func (a *App) openStore(ctx context.Context) (*repository.Store, error) {
	if !a.cfg.DB.Enabled() {
		return repository.NewStore(), nil
	}
	db, err := database.Open(ctx, a.cfg.DB)
	if err != nil {
		return nil, err
	}
	mirror := repository.NewMySQLMirror(db)
	if err := mirror.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	snap, err := mirror.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	a.db = db
	store := repository.NewStore(repository.WithMirror(mirror))
	store.Restore(snap)
	a.log.Infoj(log.JSON{
		"msg":      "store restored from mysql",
		"users":    len(snap.Users),
		"theatres": len(snap.Theatres),
		"shows":    len(snap.Shows),
		"bookings": len(snap.Bookings),
	})
	return store, nil
}

func (a *App) newEcho(h router.Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = a.log
	e.Validator = validation.Echo{}

	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			a.log.Infoj(log.JSON{
				"msg":        "request",
				"id":         v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
				"caller":     middleware.Subject(c),
			})
			return nil
		},
	}))
	e.Use(echomw.Recover())
	if a.cfg.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: a.cfg.RequestTimeout}))
	}

	router.RegisterRoutes(e, h, router.Options{
		JWTSecret: a.cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(a.cfg.RateLimit, a.rdb),
		Cache:     middleware.NewRedisCache(a.cfg.Cache, a.rdb, middleware.WithDay(a.cal.Today)),
	})
	return e
}

func (a *App) readyChecks() map[string]handler.Check {
	checks := map[string]handler.Check{
		"inventory": func(context.Context) error {
			if drifts := a.reconciler.Drifts(); len(drifts) > 0 {
				return fmt.Errorf("%d shows out of balance, first: %s", len(drifts), drifts[0])
			}
			return nil
		},
	}
	if a.db != nil {
		checks["mysql"] = a.db.PingContext
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return checks
}

// Run serves HTTP and the background jobs until ctx is cancelled, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.reconciler.Start(); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Errorj(log.JSON{"msg": "booking consumer stopped", "error": err.Error()})
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Infoj(log.JSON{"msg": "listening", "addr": addr, "env": a.cfg.Env})
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.Close()
	return runErr
}

// Close stops background work and releases connections.  It waits for
// pending event publishes.
func (a *App) Close() {
	if a.reconciler != nil {
		if err := a.reconciler.Stop(); err != nil {
			a.log.Warnj(log.JSON{"msg": "reconciler stop", "error": err.Error()})
		}
	}
	if a.bookings != nil {
		a.bookings.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
