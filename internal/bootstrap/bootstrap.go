// Package bootstrap assembles services from configuration for the API
// server and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/internal/repository"
	"github.com/noah-isme/campus-request-api/internal/service"
	"github.com/noah-isme/campus-request-api/pkg/cache"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	"github.com/noah-isme/campus-request-api/pkg/config"
	"github.com/noah-isme/campus-request-api/pkg/cookie"
	"github.com/noah-isme/campus-request-api/pkg/database"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
	"github.com/noah-isme/campus-request-api/pkg/jobs"
)

// App holds the wired services. Close releases every backing resource.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Validator *validator.Validate
	Metrics   *service.MetricsService
	Sessions  *service.SessionService
	Requests  *service.RequestService
	Accounts  *service.AccountService
	Exports   *service.ExportService
	Cookies   *cookie.Codec
	DB        *sqlx.DB
	Redis     *redis.Client

	closers []func()
}

// Option tweaks assembly.
type Option func(*options)

type options struct {
	clock         clock.Clock
	notifications bool
}

// WithClock overrides the time source for every service.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithoutNotifications skips the notification worker pool, e.g. for CLI runs.
func WithoutNotifications() Option {
	return func(o *options) { o.notifications = false }
}

// New wires the application described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	o := options{clock: clock.System{}, notifications: cfg.Notifications.Enabled}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(),
		Metrics:   service.NewMetricsService(),
	}

	if err := app.connect(ctx); err != nil {
		app.Close()
		return nil, err
	}

	codec, err := cookie.New(cfg.Session.CookieName, cfg.Session.CookieHashKey, cfg.Session.CookieBlockKey, cfg.Session.CookieSecure)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("session cookie: %w", err)
	}
	app.Cookies = codec

	if err := app.wireSessions(o.clock); err != nil {
		app.Close()
		return nil, err
	}
	notifier := app.wireNotifications(ctx, o)
	app.wireRequests(o, notifier)
	app.wireAccounts(notifier)
	app.Exports = service.NewExportService(app.Requests, o.clock, logger)

	if err := app.seedAdmin(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close stops workers and closes connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.Database.Driver != config.DriverMemory {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
		}
		a.DB = db
		a.onClose(func() { _ = db.Close() })
		a.Logger.Info("database connected", zap.String("driver", cfg.Database.Driver), zap.Bool("auto_migrate", cfg.Database.AutoMigrate))
	}

	if cfg.Session.Store == config.DriverRedis || cfg.Queue.StatsCacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
		a.onClose(func() { _ = client.Close() })
		a.Logger.Info("redis connected", zap.String("addr", client.Options().Addr))
	}
	return nil
}

func (a *App) wireSessions(c clock.Clock) error {
	cfg := service.SessionConfig{TTL: a.Config.Session.TTL, SingleSession: a.Config.Session.SingleSession}
	opts := []service.SessionServiceOption{service.WithSessionClock(c), service.WithSessionMetrics(a.Metrics)}

	switch a.Config.Session.Store {
	case config.DriverRedis:
		a.Sessions = service.NewSessionService(repository.NewRedisSessionStore(a.Redis), cfg, a.Logger, opts...)
	case config.DriverMemory, "":
		store := repository.NewMemorySessionStore()
		a.Sessions = service.NewSessionService(store, cfg, a.Logger, opts...)
		a.startJanitor(store, c)
	default:
		return fmt.Errorf("unsupported session store %q", a.Config.Session.Store)
	}
	return nil
}

// startJanitor purges expired in-memory sessions nobody presents again.
func (a *App) startJanitor(store *repository.MemorySessionStore, c clock.Clock) {
	ticker := time.NewTicker(a.Config.Session.TTL)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := store.Purge(c.Now()); n > 0 {
					a.Logger.Debug("purged expired sessions", zap.Int("count", n))
				}
			}
		}
	}()
	a.onClose(func() {
		ticker.Stop()
		close(done)
	})
}

// wireNotifications starts the notice queue. It returns nil when notifications are off.
func (a *App) wireNotifications(ctx context.Context, o options) *service.NotificationService {
	if !o.notifications {
		return nil
	}
	cfg := a.Config
	queue := jobs.NewQueue("notifications",
		service.NotificationHandler(service.LogSink{Logger: a.Logger.Named("notify")}, a.Metrics),
		jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			Logger:     a.Logger,
			OnGiveUp: func(jobs.Job, error) {
				a.Metrics.RecordNotification("abandoned")
			},
		})
	queue.Start(ctx)
	a.onClose(queue.Stop)
	return service.NewNotificationService(queue, a.Metrics, a.Logger)
}

func (a *App) wireRequests(o options, notifier *service.NotificationService) {
	cfg := a.Config
	opts := []service.RequestServiceOption{
		service.WithRequestClock(o.clock),
		service.WithRequestMetrics(a.Metrics),
	}
	if cfg.Queue.StatsCacheEnabled && a.Redis != nil {
		cacheRepo := repository.NewCacheRepository(a.Redis, a.Logger)
		opts = append(opts, service.WithRequestCache(service.NewCacheService(cacheRepo, a.Metrics, cfg.Queue.StatsCacheTTL, a.Logger, true)))
	}
	if notifier != nil {
		opts = append(opts, service.WithRequestNotifier(notifier))
	}

	estimator := service.NewQueueEstimator(o.clock, cfg.Queue.UnitServiceTime)
	if a.DB != nil {
		a.Requests = service.NewRequestService(repository.NewRequestRepository(a.DB), estimator, a.Logger, opts...)
		return
	}
	a.Requests = service.NewRequestService(repository.NewMemoryRequestRepository(), estimator, a.Logger, opts...)
}

func (a *App) wireAccounts(notifier *service.NotificationService) {
	var opts []service.AccountServiceOption
	if notifier != nil {
		opts = append(opts, service.WithResetNotifier(notifier))
	}
	if a.DB != nil {
		a.Accounts = service.NewAccountService(repository.NewAccountRepository(a.DB), a.Validator, a.Logger, opts...)
		return
	}
	a.Accounts = service.NewAccountService(repository.NewMemoryAccountRepository(), a.Validator, a.Logger, opts...)
}

func (a *App) seedAdmin(ctx context.Context) error {
	admin := a.Config.Admin
	if admin.Password == "" {
		return nil
	}
	_, err := a.Accounts.Create(ctx, dto.CreateAccountRequest{
		Identity: admin.Identity,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     models.RoleAdmin,
	})
	switch {
	case err == nil:
		a.Logger.Info("admin account seeded", zap.String("identity", admin.Identity))
	case errors.Is(err, appErrors.ErrConflict):
	default:
		return fmt.Errorf("seed admin account: %w", err)
	}
	return nil
}

// Pingers lists the connections the readiness check pings.
func (a *App) Pingers() map[string]func(context.Context) error {
	deps := map[string]func(context.Context) error{}
	if a.DB != nil {
		deps["database"] = a.DB.PingContext
	}
	if a.Redis != nil {
		client := a.Redis
		deps["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return deps
}
