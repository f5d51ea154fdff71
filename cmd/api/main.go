// Command api serves the organization admin API.
//
//	@title						Organization Admin API
//	@version					1.0
//	@description				CRUD administration backend with audit logging.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/api"
	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
	"github.com/orgdesk/admin-api/internal/core/service"
	"github.com/orgdesk/admin-api/internal/infrastructure/config"
	"github.com/orgdesk/admin-api/internal/infrastructure/db"
	"github.com/orgdesk/admin-api/internal/infrastructure/db/redis"
	"github.com/orgdesk/admin-api/internal/infrastructure/security"
	"github.com/orgdesk/admin-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "orgadmin-api",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := domain.Select(cfg.Entities)
	if err != nil {
		return err
	}

	// --- Storage ---
	store, err := db.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	// --- Idempotency keys (optional) ---
	var (
		rdb  *goredis.Client
		idem ports.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = redis.NewIdempotencyStore(rdb, cfg.Idempotency.TTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	// --- Services ---
	hasher := security.NewBcryptHasher()
	audit := service.NewAuditLogger(log)
	entities := service.NewEntityService(store.Gateway, audit, hasher, idem, validator.New(), log)
	auth := service.NewAuthService(store.Gateway, hasher, cfg.SecretKey, time.Duration(cfg.TokenDuration), log)

	e := api.NewRouter(api.Deps{
		Log:          log,
		ExposeErrors: cfg.ShouldExposeErrors(),
		Auth:         auth,
		Entities:     entities,
		Catalog:      catalog,
		StoreName:    store.Name,
		Store:        store.Gateway,
		Redis:        rdb,
		LoginRate:    cfg.HTTP.LoginRate,
		LoginBurst:   cfg.HTTP.LoginBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", store.Name).Msg("api listening")
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
