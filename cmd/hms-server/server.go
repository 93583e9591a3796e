package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/dashboard"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/notification"
)

const version = "0.1.0"

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger("")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	// Token revocation
	var revoker auth.Revoker
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		revoker = auth.NewRedisRevoker(client)
		logger.Info().Msg("token revocation backed by redis")
	} else {
		mem := auth.NewMemoryRevoker()
		defer mem.Close()
		revoker = mem
	}

	// Notification event publisher
	var publisher notification.Publisher = notification.NopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := notification.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, notification.NewCircuitBreaker("amqp", logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to amqp broker")
		}
		publisher = p
		logger.Info().Str("queue", cfg.AMQPQueue).Msg("publishing notification events")
	}
	defer publisher.Close()

	e := newApp(appDeps{
		cfg:       cfg,
		pool:      pool,
		logger:    logger,
		revoker:   revoker,
		publisher: publisher,
		metrics:   metrics.New(),
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting HMS server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

type appDeps struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	logger    zerolog.Logger
	revoker   auth.Revoker
	publisher notification.Publisher
	metrics   *metrics.Metrics
	clock     func() time.Time
}

func newIdentityService(pool *pgxpool.Pool, cfg *config.Config, tokens *auth.TokenIssuer, revoker auth.Revoker) *identity.Service {
	return identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		identity.NewAdminRepoPG(pool),
		identity.NewDepartmentRepoPG(pool),
		identity.NewRatingRepoPG(pool),
		db.NewTxManager(pool),
		identity.Options{Tokens: tokens, Revoker: revoker, GuestBookingEnabled: cfg.GuestBookingEnabled},
	)
}

// channels builds the configured delivery channels. An unconfigured channel
// is nil and is never attempted.
func channels(cfg *config.Config, logger zerolog.Logger) (notification.EmailSender, notification.SMSSender) {
	var email notification.EmailSender
	var sms notification.SMSSender
	if cfg.EmailConfigured() {
		email = notification.NewBreakerEmailSender(
			notification.NewSMTPSender(notification.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.DefaultFromEmail,
			}),
			notification.NewCircuitBreaker("smtp", logger),
		)
	}
	if cfg.SMSConfigured() {
		sms = notification.NewBreakerSMSSender(
			notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber),
			notification.NewCircuitBreaker("twilio", logger),
		)
	}
	return email, sms
}

// newApp wires every domain onto a fresh Echo instance.
func newApp(d appDeps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	// Routes are served with and without a trailing slash.
	e.Pre(echomw.RemoveTrailingSlash())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.Metrics(d.metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)

	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.ETag(middleware.DefaultCacheConfig()))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	api.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: tokens, Revoker: d.revoker, Logger: logger}))

	txm := db.NewTxManager(d.pool)

	// Identity
	identitySvc := newIdentityService(d.pool, cfg, tokens, d.revoker)
	identity.NewHandler(identitySvc).RegisterRoutes(api)

	// Notifications
	notificationRepo := inbox.NewNotificationRepoPG(d.pool)
	email, sms := channels(cfg, logger)
	dispatcher := inbox.NewDispatcher(notificationRepo, inbox.DispatcherConfig{
		Email:     email,
		SMS:       sms,
		Publisher: d.publisher,
		Metrics:   d.metrics,
		Logger:    logger.With().Str("component", "notifications").Logger(),
	})
	inbox.NewHandler(inbox.NewService(notificationRepo)).RegisterRoutes(api)

	// Appointments
	schedulingSvc := scheduling.NewService(
		scheduling.NewAppointmentRepoPG(d.pool),
		identitySvc,
		dispatcher,
		txm,
		d.metrics,
		logger.With().Str("component", "appointments").Logger(),
	)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	// Billing
	billingSvc := billing.NewService(
		billing.NewRecordRepoPG(d.pool),
		billing.NewBillRepoPG(d.pool),
		schedulingSvc,
		identitySvc,
		dispatcher,
		txm,
		d.metrics,
		logger.With().Str("component", "billing").Logger(),
	)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	// Dashboards
	dashboardSvc := dashboard.NewService(dashboard.NewStorePG(d.pool), schedulingSvc, billingSvc, identitySvc, d.clock)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)

	logger.Info().
		Bool("email", email != nil).
		Bool("sms", sms != nil).
		Bool("guest_booking", cfg.GuestBookingEnabled).
		Msg("routes registered")
	return e
}
