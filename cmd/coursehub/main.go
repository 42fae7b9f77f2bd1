package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/coursehub-io/coursehub/pkg/api"
	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/config"
	"github.com/coursehub-io/coursehub/pkg/middleware"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	connCfg := postgres.DefaultConnectionConfig(cfg.Storage.PostgresURL)
	connCfg.ReplicaURLs = postgres.SplitReplicaURLs(cfg.Storage.PostgresReplicaURLs)
	connCfg.MaxConns = cfg.Storage.PostgresMaxConns
	connCfg.MinConns = cfg.Storage.PostgresMinConns
	connCfg.Timeout = cfg.Storage.PostgresTimeout

	conns, err := postgres.NewConnectionManager(connCfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), cfg.Storage.PostgresTimeout)
	err = postgres.Migrate(migrateCtx, conns.Primary())
	cancelMigrate()
	if err != nil {
		logger.WithError(err).Error("database migration failed")
		os.Exit(1)
	}

	var redisClient *redis.Client
	var revocations auth.RevocationStore
	var memoryRevocations *auth.MemoryRevocationStore
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage.RedisURL, cfg.Storage.RedisPoolSize)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		revocations = auth.NewRedisRevocationStore(redisClient, cfg.Auth.TokenTTL)
		logger.Info("using redis-backed token revocation store")
	} else {
		memoryRevocations = auth.NewMemoryRevocationStore()
		revocations = memoryRevocations
		logger.Info("using in-memory token revocation store")
	}

	scheduler := cron.New()
	if memoryRevocations != nil {
		_, err := scheduler.AddFunc(cfg.Auth.SweepSchedule, func() {
			removed := memoryRevocations.Sweep(time.Now())
			if metrics != nil {
				metrics.RevokedTokensTracked.Set(float64(memoryRevocations.Size()))
			}
			if removed > 0 {
				logger.WithField("removed", removed).Debug("swept expired revocation entries")
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("invalid sweep schedule %q", cfg.Auth.SweepSchedule)
			os.Exit(1)
		}
	}
	if metrics != nil {
		if _, err := scheduler.AddFunc("@every 15s", func() { conns.ReportPoolStats(metrics) }); err != nil {
			logger.WithError(err).Error("failed to schedule pool stats reporter")
			os.Exit(1)
		}
	}
	scheduler.Start()

	users := postgres.NewUserStore(conns)
	courseCache := postgres.NewCourseCache(cfg.Storage.CourseCacheSize, cfg.Storage.CourseCacheTTL)
	courses := postgres.NewCourseStore(conns, courseCache)
	lessons := postgres.NewLessonStore(conns)
	enrollments := postgres.NewEnrollmentStore(conns)
	reviews := postgres.NewReviewStore(conns)
	notifications := postgres.NewNotificationStore(conns)
	reports := postgres.NewReportStore(conns)

	codec := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	service := auth.NewService(users, codec, hasher, revocations, logger, metrics)

	rules := middleware.DefaultRules()
	if cfg.Auth.PolicyFile != "" {
		rules, err = middleware.LoadRulesFile(cfg.Auth.PolicyFile)
		if err != nil {
			logger.WithError(err).Errorf("failed to load policy file %s", cfg.Auth.PolicyFile)
			os.Exit(1)
		}
		logger.WithField("rules", len(rules)).Infof("loaded authorization rules from %s", cfg.Auth.PolicyFile)
	}
	policy := middleware.NewPolicy(rules, metrics)

	authenticator := middleware.NewAuthenticator(
		codec, revocations, users, logger,
		[]string{"/api/auth/login", "/api/auth/register", "/api/auth/verify"},
		[]string{"/public/"},
	)

	server := api.NewServer(api.ServerConfig{
		AuthService:   service,
		Authenticator: authenticator,
		Policy:        policy,
		Users:         users,
		Courses:       courses,
		Lessons:       lessons,
		Enrollments:   enrollments,
		Reviews:       reviews,
		Notifications: notifications,
		Reports:       reports,
		Hasher:        hasher,
		Logger:        logger,
		Metrics:       metrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// health and metrics live on their own port so probes bypass the
	// middleware chain
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(conns.Primary(), redisClient)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	healthServer := &http.Server{
		Addr:         cfg.Server.HealthAddress(),
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.Register(func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	shutdown.Register(func(context.Context) error {
		return conns.Close()
	})
	if redisClient != nil {
		shutdown.Register(func(context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.Infof("coursehub listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.Wait(); err != nil {
		os.Exit(1)
	}
}
