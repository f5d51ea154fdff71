// Command seed creates the first administrator of a fresh install.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/orgdesk/admin-api/internal/core/service"
	"github.com/orgdesk/admin-api/internal/infrastructure/config"
	"github.com/orgdesk/admin-api/internal/infrastructure/db"
	"github.com/orgdesk/admin-api/internal/infrastructure/security"
	"github.com/orgdesk/admin-api/pkg/logger"
)

type seedConfig struct {
	Username  string `env:"SEED_ADMIN_USERNAME, default=admin"`
	Password  string `env:"SEED_ADMIN_PASSWORD, required"`
	Firstname string `env:"SEED_ADMIN_FIRSTNAME, default=System"`
	Lastname  string `env:"SEED_ADMIN_LASTNAME, default=Administrator"`
	Role      string `env:"SEED_ADMIN_ROLE, default=superadmin"`
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "orgadmin-seed",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in seedConfig
	if err := envconfig.Process(ctx, &in); err != nil {
		return err
	}

	store, err := db.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	entities := service.NewEntityService(
		store.Gateway,
		service.NewAuditLogger(log),
		security.NewBcryptHasher(),
		nil,
		validator.New(),
		log,
	)

	res, err := service.Bootstrap(ctx, store.Gateway, entities, service.BootstrapInput{
		Username:  in.Username,
		Password:  in.Password,
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Role:      in.Role,
	})
	if err != nil {
		return err
	}

	if !res.Created {
		log.Info().Str("username", in.Username).Str("user_id", res.UserID).Msg("admin already exists, nothing to do")
		return nil
	}
	log.Info().Str("username", in.Username).Str("user_id", res.UserID).Str("store", store.Name).Msg("seeding complete")
	return nil
}
