package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
	"github.com/osetrov/adminpanel-auth/internal/infra/database"
	kafkainfra "github.com/osetrov/adminpanel-auth/internal/infra/kafka"
	"github.com/osetrov/adminpanel-auth/internal/infra/logger"
	redisinfra "github.com/osetrov/adminpanel-auth/internal/infra/redis"
	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	postgresrepo "github.com/osetrov/adminpanel-auth/internal/repository/postgres"
	redisrepo "github.com/osetrov/adminpanel-auth/internal/repository/redis"
	"github.com/osetrov/adminpanel-auth/internal/transport/http/middleware"
	"github.com/osetrov/adminpanel-auth/internal/transport/http/routes"
	"github.com/osetrov/adminpanel-auth/internal/usecase"
)

// Application wires configuration, infrastructure, services and transport.
type Application struct {
	cfg           *config.AppConfig
	engine        *gin.Engine
	logger        *zap.Logger
	pool          *pgxpool.Pool
	redis         *redisinfra.Client
	kafkaProducer *kafkainfra.Producer
	tokenReaper   *usecase.Reaper
	lockoutReaper *usecase.Reaper
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	signer, err := security.NewJWTSigner(cfg.JWT)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var (
		eventPublisher port.EventPublisher
		kafkaProducer  *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
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

	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), cfg.Redis.KeyPrefix)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, cfg.RateLimit, log)

	tokenService := usecase.NewTokenService(repos.Tokens, signer, eventPublisher, cfg.JWT.RefreshTokenTTL, log)
	lockoutService := usecase.NewLockoutService(repos.Lockouts, eventPublisher, cfg.Lockout, log)
	authService := usecase.NewAuthService(repos.Accounts, tokenService, lockoutService, signer, eventPublisher, log)

	tokenReaper := usecase.NewTokenReaper(repos.Tokens, cfg.Cleanup, log)
	lockoutReaper := usecase.NewLockoutReaper(repos.Lockouts, cfg.Cleanup, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "auth"})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Lockouts: lockoutService,
		},
	})

	return &Application{
		cfg:           cfg,
		engine:        engine,
		logger:        log,
		pool:          pool,
		redis:         redisClient,
		kafkaProducer: kafkaProducer,
		tokenReaper:   tokenReaper,
		lockoutReaper: lockoutReaper,
	}, nil
}

// Run starts the HTTP server and the background reapers and blocks until the
// context is cancelled or a component fails.
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
		if a.kafkaProducer != nil {
			if err := a.kafkaProducer.Close(); err != nil {
				a.logger.Warn("failed to close kafka producer", zap.Error(err))
			}
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

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := a.tokenReaper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("token reaper: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := a.lockoutReaper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("lockout reaper: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("stopped cleanly")
	return nil
}
