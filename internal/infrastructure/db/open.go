// Package db opens the record store selected by STORE_DRIVER.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
	"github.com/orgdesk/admin-api/internal/infrastructure/config"
	"github.com/orgdesk/admin-api/internal/infrastructure/db/memory"
	"github.com/orgdesk/admin-api/internal/infrastructure/db/mongo"
	"github.com/orgdesk/admin-api/internal/infrastructure/db/postgres"
)

// Store is an opened gateway together with the means to release it.
type Store struct {
	Gateway ports.Gateway
	// Name labels the store in readiness output ("mongodb", "postgres", "memory").
	Name  string
	Close func(ctx context.Context) error
}

// Open connects to the configured driver and prepares its schema: indexes
// for MongoDB, embedded migrations for Postgres.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, database, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "orgadmin",
		})
		if err != nil {
			return nil, err
		}

		g := mongo.NewGateway(client, database, cfg.Mongo.Transactions)
		if err := g.EnsureIndexes(ctx, domain.Catalog); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		if !cfg.Mongo.Transactions {
			log.Warn().Msg("mongo transactions disabled: a failed audit append will not roll back its mutation")
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

		return &Store{Gateway: g, Name: "mongodb", Close: client.Disconnect}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres, migrations applied")

		return &Store{
			Gateway: postgres.NewGateway(pool),
			Name:    "postgres",
			Close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using the in-memory store: data is lost on exit")
		return &Store{
			Gateway: memory.NewGateway(),
			Name:    "memory",
			Close:   func(context.Context) error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
