package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/infra/config"
	"github.com/arklim/authcore/internal/infra/database"
	kafkainfra "github.com/arklim/authcore/internal/infra/kafka"
	"github.com/arklim/authcore/internal/infra/logger"
	redisinfra "github.com/arklim/authcore/internal/infra/redis"
	"github.com/arklim/authcore/internal/infra/security"
	"github.com/arklim/authcore/internal/infra/telemetry"
	postgresrepo "github.com/arklim/authcore/internal/repository/postgres"
	redisrepo "github.com/arklim/authcore/internal/repository/redis"
	"github.com/arklim/authcore/internal/transport/http/middleware"
	"github.com/arklim/authcore/internal/transport/http/routes"
	"github.com/arklim/authcore/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	codec, err := security.NewTokenCodec(keyProvider, keyProvider.SigningKID(), cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	revocations := redisrepo.NewRevocationRepository(redisClient.Client(), cfg.Redis.RevocationPrefix)
	rateLimits := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix)
	epochs := redisrepo.NewEpochCache(redisClient.Client(), cfg.Redis.TokenEpochPrefix)

	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	policy := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.RateLimit.DegradationPolicy))

	limiter, err := usecase.NewAdmissionLimiter(rateLimits, policy)
	if err != nil {
		return nil, fmt.Errorf("init admission limiter: %w", err)
	}
	if err := limiter.SetScopeLimit(usecase.ScopeLogin, usecase.ScopeLimit{
		Max:    cfg.RateLimit.LoginMaxAttempts,
		Window: cfg.RateLimit.LoginWindow,
	}); err != nil {
		return nil, fmt.Errorf("configure login scope: %w", err)
	}
	if err := limiter.SetScopeLimit(usecase.ScopeSecondFactor, usecase.ScopeLimit{
		Max:    cfg.RateLimit.SecondFactorMax,
		Window: cfg.RateLimit.SecondFactorWindow,
	}); err != nil {
		return nil, fmt.Errorf("configure 2fa scope: %w", err)
	}

	lockout, err := usecase.NewLockoutGuard(repos.Principals, repos.Failures, cfg.Lockout.Threshold, cfg.Lockout.LockDuration)
	if err != nil {
		return nil, fmt.Errorf("init lockout guard: %w", err)
	}

	secondFactor, err := usecase.NewSecondFactorVerifier(repos.BackupCodes, security.NewTOTPVerifier())
	if err != nil {
		return nil, fmt.Errorf("init second factor verifier: %w", err)
	}

	authService, err := usecase.NewAuthService(cfg, repos.Principals, repos.Audit, revocations, epochs, eventPublisher, codec, hasher, lockout, limiter, secondFactor)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	apiKeyService, err := usecase.NewAPIKeyService(cfg, repos.APIKeys, limiter)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init api key service: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(rateLimits, policy, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Telemetry:   metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:    authService,
			APIKeys: apiKeyService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
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
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
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
