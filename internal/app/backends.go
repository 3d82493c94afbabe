package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/chatboard/internal/config"
	"github.com/keyxmakerx/chatboard/internal/database"
	"github.com/keyxmakerx/chatboard/internal/plugins/messages"
	"github.com/keyxmakerx/chatboard/internal/spamguard"
)

// Backends bundles the storage clients opened for the configured backend
// and the stores built on them. Unused clients are nil.
type Backends struct {
	DB        *sql.DB
	Redis     *redis.Client
	Firestore *firestore.Client

	Messages messages.MessageRepository
	Spam     spamguard.Store
}

// OpenBackends connects to the storage selected by cfg.Backend and builds
// the message repository and spam store over it.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	switch cfg.Backend {
	case config.BackendMariaDB:
		db, err := database.NewMariaDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to MariaDB")

		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}

		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("connected to Redis")

		return &Backends{
			DB:       db,
			Redis:    rdb,
			Messages: messages.NewMariaDBRepository(db),
			Spam:     spamguard.NewRedisStore(rdb, spamPolicy(cfg)),
		}, nil

	case config.BackendFirestore:
		client, err := database.NewFirestore(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to Firestore", slog.String("project", cfg.Firestore.ProjectID))

		return &Backends{
			Firestore: client,
			Messages:  messages.NewFirestoreRepository(client),
			Spam:      spamguard.NewFirestoreStore(client),
		}, nil

	case config.BackendMemory:
		slog.Warn("using in-memory backend; messages are lost on restart")
		return &Backends{
			Messages: messages.NewMemoryRepository(),
			Spam:     spamguard.NewMemoryStore(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Ping checks every open client.
func (b *Backends) Ping(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if b.DB != nil {
		checks["mariadb"] = b.DB.PingContext(ctx)
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Ping(ctx).Err()
	}
	if b.Firestore != nil {
		checks["firestore"] = database.PingFirestore(ctx, b.Firestore)
	}
	return checks
}

// Close releases every open client.
func (b *Backends) Close() error {
	var errs []error
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.Firestore != nil {
		errs = append(errs, b.Firestore.Close())
	}
	return errors.Join(errs...)
}
