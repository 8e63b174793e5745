package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/core/port"
	"github.com/arklim/auth-gateway/internal/identity"
	"github.com/arklim/auth-gateway/internal/infra/config"
	"github.com/arklim/auth-gateway/internal/infra/database"
	kafkainfra "github.com/arklim/auth-gateway/internal/infra/kafka"
	"github.com/arklim/auth-gateway/internal/infra/logger"
	redisinfra "github.com/arklim/auth-gateway/internal/infra/redis"
	"github.com/arklim/auth-gateway/internal/infra/security"
	"github.com/arklim/auth-gateway/internal/infra/telemetry"
	postgresrepo "github.com/arklim/auth-gateway/internal/repository/postgres"
	redisrepo "github.com/arklim/auth-gateway/internal/repository/redis"
	"github.com/arklim/auth-gateway/internal/transport/http/middleware"
	"github.com/arklim/auth-gateway/internal/transport/http/routes"
	"github.com/arklim/auth-gateway/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracer   *telemetry.TracerProvider
	sessions *usecase.SessionService

	// reclaimInterval drives the expired-session purge ticker when the
	// PostgreSQL session store is selected. Zero disables the ticker.
	reclaimInterval time.Duration
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryProvider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var sessionStore port.SessionStore
	reclaimInterval := time.Duration(0)
	if cfg.Session.Store == "postgres" {
		sessionStore = repos.Sessions
		reclaimInterval = cfg.Session.ReclaimInterval
		if reclaimInterval <= 0 {
			reclaimInterval = 10 * time.Minute
		}
	} else {
		sessionStore = redisrepo.NewSessionStore(redisClient.Client(), redisrepo.SessionStoreConfig{
			KeyPrefix: cfg.Redis.SessionPrefix,
			Retention: cfg.Session.Retention,
		})
	}

	attemptStore := redisrepo.NewFailedAttemptStore(redisClient.Client(), redisrepo.AttemptStoreConfig{
		KeyPrefix: cfg.Redis.AttemptPrefix,
		Window:    cfg.Lockout.WindowDuration,
	})

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.RateLimitConfig{
		KeyPrefix: "authgw:rate_limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	hasher := security.Hasher{}
	passwordValidator := security.DefaultPasswordValidator()

	verifier := usecase.NewCredentialVerifier(repos.Users, attemptStore, hasher, usecase.VerifierConfig{
		MaxAttempts: cfg.Lockout.MaxAttempts,
		DigestRealm: cfg.Digest.Realm,
	}, log)

	sessionService := usecase.NewSessionService(sessionStore, eventPublisher, usecase.SessionConfig{
		DefaultTTL: cfg.Session.DefaultTTL,
		Rolling:    cfg.Session.Rolling,
		Retention:  cfg.Session.Retention,
	}, log)

	registry := buildProviderRegistry(cfg.Providers)
	log.Info("external identity providers registered", zap.Strings("providers", registry.Names()))

	authService := usecase.NewAuthService(repos.Users, verifier, sessionService, registry, eventPublisher, log)
	registrationService := usecase.NewRegistrationService(repos.Users, hasher, passwordValidator, eventPublisher, cfg.Digest.Realm, log)
	userService := usecase.NewUserService(repos.Users, sessionService, hasher, passwordValidator, cfg.Digest.Realm, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Telemetry:   telemetryProvider,
		UserRepo:    repos.Users,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Users:        userService,
			Sessions:     sessionService,
		},
	})

	return &Application{
		cfg:             cfg,
		engine:          engine,
		logger:          log,
		pool:            pool,
		redis:           redisClient,
		tracer:          tracer,
		sessions:        sessionService,
		reclaimInterval: reclaimInterval,
	}, nil
}

// buildProviderRegistry wires the enabled external providers from config.
func buildProviderRegistry(cfg config.ProviderSettings) *identity.Registry {
	registry := identity.NewRegistry()

	providerConfig := func(pc config.ProviderCredentials) identity.ProviderConfig {
		return identity.ProviderConfig{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			TokenURL:     pc.TokenURL,
			ProfileURL:   pc.ProfileURL,
			RedirectURI:  pc.RedirectURI,
			Timeout:      cfg.ExchangeTimeout,
		}
	}

	if cfg.Twitter.Enabled {
		registry.Register(identity.NewTwitterProvider(providerConfig(cfg.Twitter), nil))
	}
	if cfg.Facebook.Enabled {
		registry.Register(identity.NewFacebookProvider(providerConfig(cfg.Facebook), nil))
	}
	if cfg.GitHub.Enabled {
		registry.Register(identity.NewGitHubProvider(providerConfig(cfg.GitHub), nil))
	}
	if cfg.Google.Enabled {
		registry.Register(identity.NewGoogleProvider(providerConfig(cfg.Google), nil))
	}
	if cfg.Yandex.Enabled {
		registry.Register(identity.NewYandexProvider(providerConfig(cfg.Yandex), nil))
	}
	if cfg.VK.Enabled {
		registry.Register(identity.NewVKProvider(providerConfig(cfg.VK), nil))
	}

	return registry
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	if a.reclaimInterval > 0 {
		go a.runSessionReclaimer(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth gateway API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// runSessionReclaimer periodically purges session records whose retention
// window has passed. Only active for the PostgreSQL session store; Redis
// reclaims via key TTLs.
func (a *Application) runSessionReclaimer(ctx context.Context) {
	ticker := time.NewTicker(a.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := a.sessions.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("session purge failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				a.logger.Info("purged expired sessions", zap.Int("count", purged))
			}
		}
	}
}
