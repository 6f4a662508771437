package statusfor

import (
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-statusfor/internal/commands"
	statuscmd "github.com/goliatone/go-statusfor/internal/commands/status"
	"github.com/goliatone/go-statusfor/internal/storage"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OpenDB connects to the configured database with the matching bun dialect.
func OpenDB(cfg StorageConfig) (*bun.DB, error) {
	return storage.Open(cfg)
}

// NewPersister returns a persister writing status columns through db, which
// may be a *bun.DB or a bun.Tx.
func NewPersister(db bun.IDB) Persister {
	return storage.NewBunPersister(db)
}

// Repository stores status-bearing records of T with optional cached reads.
type Repository[T any] = storage.Repository[T]

// NewRepository builds a uuid keyed repository for records of T. Id lookups
// go through the module cache when caching is enabled. The repository is a
// Persister and can be handed to WithInstallPersister, which keeps cached
// reads fresh for writes made through SetStatusTx as well.
func NewRepository[T any](m *Module, db *bun.DB, resource string, newRecord func() T, id func(T) uuid.UUID, setID func(T, uuid.UUID)) *Repository[T] {
	opts := []storage.RepositoryOption{storage.WithResource(resource)}
	if m != nil && m.cache != nil {
		opts = append(opts, storage.WithCache(m.cache, repocache.NewDefaultKeySerializer()))
	}
	return storage.NewRepository(db, storage.Handlers[T]{
		New:   newRecord,
		ID:    id,
		SetID: setID,
	}, opts...)
}

// SetStatusCommand applies a status string to a stored entity.
type SetStatusCommand = statuscmd.SetStatusCommand

// NewSetStatusHandler returns a go-command handler applying SetStatusCommand
// messages to entities fetched by loader.
// Command durations feed the module collector when metrics are enabled.
func NewSetStatusHandler[T any](m *Module, loader statuscmd.Loader[T], opts ...commands.HandlerOption[SetStatusCommand]) *statuscmd.SetStatusHandler[T] {
	logger := commands.CommandLogger(m.provider, "status")
	if m.collector != nil {
		opts = append([]commands.HandlerOption[SetStatusCommand]{
			commands.WithTelemetry(commands.ChainTelemetry(
				commands.DefaultTelemetry[SetStatusCommand](logger),
				commands.ObservedTelemetry[SetStatusCommand](m.collector),
			)),
		}, opts...)
	}
	return statuscmd.NewSetStatusHandler[T](loader, m, logger, opts...)
}
