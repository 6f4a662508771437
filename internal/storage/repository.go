package storage

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ettle/strcase"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	cache "github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Handlers describe how the repository builds and identifies records of T.
// T is a pointer to a bun model keyed by a uuid primary key.
type Handlers[T any] struct {
	New   func() T
	ID    func(T) uuid.UUID
	SetID func(T, uuid.UUID)
}

// Repository stores status-bearing records through go-repository-bun. Reads
// by id may go through a repository cache; filtered listings always hit the
// database.
type Repository[T any] struct {
	base         repository.Repository[T]
	repo         repository.Repository[T]
	ids          func(T) uuid.UUID
	resource     string
	cacheService cache.CacheService
	cachePrefix  string
}

// RepositoryOption configures a repository.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	cacheService cache.CacheService
	serializer   cache.KeySerializer
	resource     string
}

// WithCache decorates id lookups with the given cache service.
func WithCache(cacheService cache.CacheService, serializer cache.KeySerializer) RepositoryOption {
	return func(o *repositoryOptions) {
		o.cacheService = cacheService
		o.serializer = serializer
	}
}

// WithResource names the records in errors.
func WithResource(name string) RepositoryOption {
	return func(o *repositoryOptions) {
		if name != "" {
			o.resource = name
		}
	}
}

// NewRepository builds a repository for T on db.
func NewRepository[T any](db *bun.DB, handlers Handlers[T], opts ...RepositoryOption) *Repository[T] {
	options := repositoryOptions{resource: "record"}
	for _, opt := range opts {
		opt(&options)
	}

	base := repository.MustNewRepository(db, repository.ModelHandlers[T]{
		NewRecord: handlers.New,
		GetID:     handlers.ID,
		SetID:     handlers.SetID,
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			return handlers.ID(record).String()
		},
	})

	r := &Repository[T]{
		base:     base,
		repo:     base,
		ids:      handlers.ID,
		resource: options.resource,
	}
	if options.cacheService != nil && options.serializer != nil {
		r.repo = repositorycache.New(base, options.cacheService, options.serializer)
		r.cacheService = options.cacheService
		r.cachePrefix = cacheNamespace[T]() + cache.KeySeparator
	}
	return r
}

// Create inserts record, assigning an id when it has none.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	created, err := r.repo.Create(ctx, record)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s repository error: %w", r.resource, err)
	}
	return created, nil
}

// GetByID loads the record with id.
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		var zero T
		return zero, r.mapError(err, id.String())
	}
	return record, nil
}

// Update writes columns of record. All columns are written when none are given.
func (r *Repository[T]) Update(ctx context.Context, record T, columns ...string) (T, error) {
	id := r.ids(record)
	updated, err := r.repo.Update(ctx, record, updateCriteria(id, columns)...)
	if err != nil {
		var zero T
		return zero, r.mapError(err, id.String())
	}
	return updated, nil
}

// Save implements interfaces.Persister for records of T. Inside WithinTx the
// write joins the open transaction.
func (r *Repository[T]) Save(ctx context.Context, entity any, columns ...string) error {
	if tx, ok := TxFromContext(ctx); ok {
		return r.SaveTx(ctx, tx, entity, columns...)
	}
	record, ok := entity.(T)
	if !ok {
		return fmt.Errorf("%s repository: cannot save %T", r.resource, entity)
	}
	if _, err := r.Update(ctx, record, columns...); err != nil {
		return err
	}
	return r.InvalidateCache(ctx)
}

// SaveTx writes columns of entity through tx. Cached entries are dropped
// again once the transaction carried by ctx commits.
func (r *Repository[T]) SaveTx(ctx context.Context, tx bun.IDB, entity any, columns ...string) error {
	record, ok := entity.(T)
	if !ok {
		return fmt.Errorf("%s repository: cannot save %T", r.resource, entity)
	}
	id := r.ids(record)
	if _, err := r.repo.UpdateTx(ctx, tx, record, updateCriteria(id, columns)...); err != nil {
		return r.mapError(err, id.String())
	}
	OnCommit(ctx, func(ctx context.Context) {
		_ = r.InvalidateCache(ctx)
	})
	return nil
}

func updateCriteria(id uuid.UUID, columns []string) []repository.UpdateCriteria {
	criteria := []repository.UpdateCriteria{repository.UpdateByID(id.String())}
	if len(columns) > 0 {
		criteria = append(criteria, repository.UpdateColumns(columns...))
	}
	return criteria
}

// Where lists the records selected by process, bypassing the cache.
func (r *Repository[T]) Where(ctx context.Context, process func(*bun.SelectQuery) *bun.SelectQuery) ([]T, error) {
	records, _, err := r.base.List(ctx, repository.SelectRawProcessor(process))
	if err != nil {
		return nil, fmt.Errorf("%s repository error: %w", r.resource, err)
	}
	return records, nil
}

// InvalidateCache drops cached entries of the repository.
func (r *Repository[T]) InvalidateCache(ctx context.Context) error {
	if r.cacheService == nil || r.cachePrefix == "" {
		return nil
	}
	return r.cacheService.DeleteByPrefix(ctx, r.cachePrefix)
}

func (r *Repository[T]) mapError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) ||
		goerrors.IsCategory(err, repository.CategoryDatabaseExpectedCount) {
		return goerrors.Wrap(ErrRecordNotFound, goerrors.CategoryNotFound, fmt.Sprintf("%s %s not found", r.resource, key)).
			WithTextCode("STATUS_RECORD_NOT_FOUND")
	}
	return fmt.Errorf("%s repository error: %w", r.resource, err)
}

// cacheNamespace is the key namespace the repository cache derives for T:
// the snake cased struct name with pointers stripped.
func cacheNamespace[T any]() string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	name := typ.Name()
	if name == "" {
		name = typ.String()
		if idx := strings.LastIndex(name, "."); idx != -1 {
			name = name[idx+1:]
		}
	}
	return strcase.ToSnake(name)
}
