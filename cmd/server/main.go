package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/config"
	"github.com/iliyamo/restful-api/internal/database"
	"github.com/iliyamo/restful-api/internal/handler"
	"github.com/iliyamo/restful-api/internal/logger"
	"github.com/iliyamo/restful-api/internal/queue"
	"github.com/iliyamo/restful-api/internal/repository"
	"github.com/iliyamo/restful-api/internal/router"
	"github.com/iliyamo/restful-api/internal/security"
	"github.com/iliyamo/restful-api/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction()})

	db, dialect, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("connect database")
	}
	defer db.Close()

	// Redis is optional: without it the cache stays in process and the
	// rate limiter is off.
	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable")
	} else {
		defer rdb.Close()
	}

	c := cache.New(cacheBackend(cfg.Cache, rdb, log), cache.Policy{
		Absolute: cfg.Cache.AbsoluteTTL,
		Sliding:  cfg.Cache.SlidingTTL,
	}, log)

	accounts := repository.NewAccountRepo(db, c, log)
	employees := repository.NewEmployeeRepo(db, c, log)
	tokens := repository.NewTokenRepo(db, dialect, log)

	var events queue.Publisher = queue.NewLogPublisher(log)
	if cfg.Queue.Enabled {
		events = queue.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.Name, log)
		consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.AuditLog, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	issuer := security.NewTokenIssuer(cfg.JWT)
	svc := service.NewCredentialService(service.Deps{
		Accounts:   accounts,
		Tokens:     tokens,
		Hasher:     security.NewPasswordHasher(cfg.BcryptCost),
		Issuer:     issuer,
		Events:     events,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Log:        log,
	})
	go purgeExpired(ctx, svc, cfg.TokenPurgeInterval, log)

	e := router.New(router.Deps{
		Auth:       handler.NewAuthHandler(svc),
		Employees:  handler.NewEmployeeHandler(employees),
		Accounts:   handler.NewAccountHandler(accounts, svc),
		Ready:      &handler.Readiness{DB: db, Cache: c},
		Issuer:     issuer,
		Redis:      rdb,
		RateLimit:  cfg.RateLimit,
		Log:        log,
		Production: cfg.IsProduction(),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("db", string(dialect)).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func cacheBackend(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) cache.Backend {
	if cfg.Backend == "redis" {
		if rdb != nil {
			log.Info().Str("prefix", cfg.Prefix).Msg("cache backend: redis")
			return cache.NewRedisBackend(rdb, cfg.Prefix)
		}
		log.Warn().Msg("cache backend redis requested without a redis client, using memory")
	}
	log.Info().Int64("size_limit", cfg.SizeLimit).Msg("cache backend: memory")
	return cache.NewMemoryBackend(cfg.SizeLimit)
}

// purgeExpired deletes expired refresh tokens every interval until ctx ends.
func purgeExpired(ctx context.Context, svc *service.CredentialService, every time.Duration, log zerolog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge expired refresh tokens")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("purged expired refresh tokens")
			}
		}
	}
}
