package main

import (
	"context"
	"os"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/lock"
	"github.com/goliatone/go-accounts/metrics"
	"github.com/goliatone/go-accounts/notify"
	"github.com/goliatone/go-accounts/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// App holds the wired service.
type App struct {
	cfg    *config.BaseConfig
	logger *glog.BaseLogger

	db        *bun.DB
	stores    *repository.Manager
	tokens    *accounts.TokenService
	lifecycle *accounts.Lifecycle
	redis     redis.UniversalClient
	metrics   *metrics.Server

	fiber *fiber.App
	srv   router.Server[*fiber.App]
}

func newLogger(cfg *config.BaseConfig) *glog.BaseLogger {
	level := glog.Info
	if cfg.Debug {
		level = glog.Trace
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

// GetLogger implements accounts.LoggerProvider.
func (a *App) GetLogger(name string) accounts.Logger {
	return a.logger.GetLogger(name)
}

var _ accounts.LoggerProvider = (*App)(nil)

// NewApp connects the store and wires every component described by cfg.
// The HTTP server is built but not started, see Run.
func NewApp(ctx context.Context, cfg *config.BaseConfig, lgr *glog.BaseLogger) (*App, error) {
	app := &App{cfg: cfg, logger: lgr}

	if err := WithPersistence(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	if err := WithLifecycle(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	WithHTTPServer(app)

	return app, nil
}

// WithPersistence opens the database and optionally migrates it.
func WithPersistence(ctx context.Context, app *App) error {
	db, err := repository.Open(app.cfg.Database.Driver, app.cfg.Database.DSN)
	if err != nil {
		return err
	}
	app.db = db

	if app.cfg.Database.Migrate {
		if err := repository.Migrate(ctx, db, app.GetLogger("accounts:migrate")); err != nil {
			return err
		}
	}

	app.stores = repository.NewRepositoryManager(db)
	return app.stores.Validate()
}

// WithLifecycle builds the token issuer, the notifier chain, the optional
// lock and metrics and the lifecycle handlers on top of them.
func WithLifecycle(ctx context.Context, app *App) error {
	tokens, err := accounts.NewTokenService(app.cfg,
		accounts.WithTokenLogger(app.GetLogger("accounts:tokens")),
	)
	if err != nil {
		return err
	}
	app.tokens = tokens

	notifier, err := buildNotifier(app.cfg, app)
	if err != nil {
		return err
	}

	sinks := accounts.MultiActivitySink{activityLogSink(app.GetLogger("accounts:activity"))}

	if app.cfg.Metrics.Enabled {
		app.metrics = metrics.NewServer(app.cfg.Metrics.Address, app.GetLogger("accounts:metrics"))
		sink, err := metrics.NewSink(app.metrics.Registry())
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}

	opts := []accounts.LifecycleOption{
		accounts.WithNotifier(notifier),
		accounts.WithActivitySink(sinks),
		accounts.WithLogger(app.GetLogger("accounts:lifecycle")),
		accounts.WithHashidAccountIDs(app.cfg.Auth.HashidAccountIDs),
		accounts.WithDebug(app.cfg.Debug),
	}

	if app.cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.Redis.Address,
			Password: app.cfg.Redis.Password,
			DB:       app.cfg.Redis.DB,
		})
		app.redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "redis unreachable").
				WithMetadata(map[string]any{"address": app.cfg.Redis.Address})
		}
		opts = append(opts, accounts.WithRegenerationLocker(lock.NewRedisLocker(client,
			lock.WithTTL(app.cfg.Redis.LockTTL),
			lock.WithLogger(app.GetLogger("accounts:lock")),
		)))
	}

	lifecycle, err := accounts.NewLifecycle(app.stores, tokens, app.cfg, opts...)
	if err != nil {
		return err
	}
	app.lifecycle = lifecycle
	return nil
}

// buildNotifier renders mail through the configured driver, throttled and
// retried.
func buildNotifier(cfg *config.BaseConfig, loggers accounts.LoggerProvider) (accounts.Notifier, error) {
	renderer, err := notify.NewRenderer(notify.WithTemplateDir(cfg.Mail.TemplateDir))
	if err != nil {
		return nil, err
	}

	var mailer notify.Mailer
	switch cfg.Mail.Driver {
	case "smtp":
		mailer = notify.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port,
			notify.WithSMTPAuth(cfg.Mail.Username, cfg.Mail.Password),
		)
	default:
		mailer = notify.NewLogMailer(loggers.GetLogger("accounts:mail"))
	}

	mail, err := notify.NewMailNotifier(mailer, renderer,
		notify.WithFrom(cfg.Mail.From),
		notify.WithBaseURL(cfg.Mail.BaseURL),
		notify.WithTokenTTL(cfg.Auth.ActivationTokenTTL),
		notify.WithLogger(loggers.GetLogger("accounts:mail")),
	)
	if err != nil {
		return nil, err
	}

	throttled := notify.Throttled(mail, notify.NewLimiter(cfg.Mail.RatePerSec, cfg.Mail.RateBurst))
	return notify.Retrying(throttled, cfg.Mail.MaxRetries, notify.DefaultRetryBase, loggers.GetLogger("accounts:mail")), nil
}

func activityLogSink(logger accounts.Logger) accounts.ActivitySink {
	return activitymap.NewSink(activitymap.Mapper{}, func(_ context.Context, rec activitymap.Normalized) error {
		logger.Info("activity",
			"verb", rec.Verb,
			"actor_id", rec.ActorID,
			"object", rec.ObjectType+":"+rec.ObjectID,
			"metadata", rec.Metadata,
			"at", rec.OccurredAt,
		)
		return nil
	})
}

// WithHTTPServer builds the fiber backed router and registers the routes.
func WithHTTPServer(app *App) {
	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app.fiber = router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			DisableStartupMessage: true,
			StrictRouting:         false,
		}))
		return app.fiber
	})

	app.srv.Router().WithLogger(app.logger.GetLogger("accounts:router"))

	errorHandler := accounts.NewErrorHandler(app.GetLogger("accounts:http"))
	controller := accounts.NewAccountsController(app.lifecycle,
		accounts.WithControllerLogger(app.GetLogger("accounts:http")),
		accounts.WithControllerDebug(app.cfg.Debug),
		accounts.WithControllerContextKey(app.cfg.Auth.ContextKey),
		accounts.WithControllerErrorHandler(errorHandler),
	)

	accounts.RegisterAccountRoutes(app.srv.Router(), controller,
		accounts.ProtectedRoute(app.tokens, app.cfg, errorHandler),
	)
}

// Run serves HTTP (and metrics when enabled) until ctx is done, a signal
// arrives on stop or a server fails, then shuts both down.
func (a *App) Run(ctx context.Context, stop <-chan os.Signal) error {
	logger := a.GetLogger("accounts:server")

	var metricsErr <-chan error
	if a.metrics != nil {
		ch, err := a.metrics.Start()
		if err != nil {
			return err
		}
		metricsErr = ch
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.srv.Serve(a.cfg.Server.Address); err != nil {
			serveErr <- err
		}
	}()
	logger.Info("accounts server started", "address", a.cfg.Server.Address)

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	case err := <-serveErr:
		runErr = goerrors.Wrap(err, goerrors.CategoryInternal, "http server failed")
	case err, ok := <-metricsErr:
		if ok && err != nil {
			runErr = goerrors.Wrap(err, goerrors.CategoryInternal, "metrics server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.fiber != nil {
		if err := a.fiber.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Stop(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", "error", err)
		}
	}

	return runErr
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
