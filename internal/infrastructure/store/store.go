package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	contactapp "github.com/sngm3741/contact-form-services/api/internal/contact/application"
	mongorepo "github.com/sngm3741/contact-form-services/api/internal/infrastructure/mongo"
	"github.com/sngm3741/contact-form-services/api/internal/infrastructure/postgres"
)

// CloseFunc releases the store connection.
type CloseFunc func(ctx context.Context) error

// Open connects to the store selected by cfg.StoreDriver and prepares it for
// writes (indexes or schema). The caller must invoke the returned CloseFunc.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (contactapp.SubmissionRepository, CloseFunc, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return openMongo(ctx, cfg, logger)
	case config.StorePostgres:
		return openPostgres(ctx, cfg, logger)
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openMongo(ctx context.Context, cfg config.Config, logger zerolog.Logger) (contactapp.SubmissionRepository, CloseFunc, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	repo := mongorepo.NewSubmissionRepository(client.Database(cfg.MongoDatabase), cfg.ContactCollection)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn().Err(err).Str("collection", cfg.ContactCollection).Msg("failed to ensure submission indexes")
	}

	logger.Info().Str("database", cfg.MongoDatabase).Str("collection", cfg.ContactCollection).Msg("connected to MongoDB")
	return repo, client.Disconnect, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger zerolog.Logger) (contactapp.SubmissionRepository, CloseFunc, error) {
	pool, err := postgres.Connect(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, nil, err
	}

	repo, err := postgres.NewSubmissionRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info().Msg("connected to PostgreSQL")
	return repo, func(context.Context) error {
		pool.Close()
		return nil
	}, nil
}
