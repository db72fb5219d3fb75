package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/session-auth-api/internal/cache"
	"github.com/iliyamo/session-auth-api/internal/config"
	"github.com/iliyamo/session-auth-api/internal/database"
	"github.com/iliyamo/session-auth-api/internal/handler"
	"github.com/iliyamo/session-auth-api/internal/mail"
	"github.com/iliyamo/session-auth-api/internal/middleware"
	"github.com/iliyamo/session-auth-api/internal/repository"
	"github.com/iliyamo/session-auth-api/internal/router"
	"github.com/iliyamo/session-auth-api/internal/service"
	"github.com/iliyamo/session-auth-api/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Sugar().Fatalw("load config", "error", err)
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}

func newLogger(cfg config.Config) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.IsProduction() {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func run(cfg config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// Redis backs the rate limiter and session cache.  Both degrade to
	// no-ops when it is unreachable.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		logger.Warnw("redis unavailable, rate limiting and session cache disabled", "error", err)
	} else {
		defer rdb.Close()
	}

	var sessCache service.SessionCache
	if c := cache.NewSessionCache(config.LoadSessionCacheConfig(), rdb); c != nil {
		sessCache = c
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	sessions := repository.NewSessionRepo(db)
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	svc := service.NewAuthService(service.Deps{
		Users:    users,
		Roles:    roles,
		Sessions: sessions,
		OTPs:     repository.NewOTPRepo(db),
		Tx:       database.NewTransactor(db),
		Mailer:   mail.NewPublisher(cfg.AMQPURL, cfg.MailQueue, cfg.MailFrom, logger.Named("mail")),
		Tokens:   issuer,
		Cache:    sessCache,
	}, service.Options{BcryptCost: cfg.BcryptCost, OTPTTL: cfg.OTPTTL}, logger.Named("auth"))
	authn := service.NewAuthenticator(issuer, sessions, users, roles, sessCache, logger.Named("authn"))

	consumer := mail.NewConsumer(cfg.AMQPURL, cfg.MailQueue, mail.NewFileSender(cfg.MailLogDir), logger.Named("mail-consumer"))
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("mail consumer stopped", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.Named("http")))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(svc), authn,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit")))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Infow("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Infow("shutting down")
	return e.Shutdown(shutdownCtx)
}
