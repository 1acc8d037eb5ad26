package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zoff-tech/go-opqueue/pkg/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Overridable in tests.
var sqlOpen = sql.Open

var mongoConnect = func(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, mongoopts.Client().ApplyURI(uri))
}

// NewRepository builds the store backend selected by the configuration.
// "sqlite" is the embedded default; "postgres" and "mongo" serve hub and
// gateway deployments where the queue lives off the panel.
func NewRepository(ctx context.Context, cfg config.StoreSettings) (QueueRepository, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSqliteRepository(ctx, cfg.Path)
	case "postgres":
		db, err := sqlOpen("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &PostgresRepository{db: db}, nil
	case "mongo":
		client, err := mongoConnect(ctx, cfg.URI)
		if err != nil {
			return nil, err
		}
		return NewMongoRepository(client, cfg.Database, cfg.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
