package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
	"github.com/uptrace/bun"
)

// ErrRecordNotFound reports a status write that matched no stored row.
var ErrRecordNotFound = errors.New("statusfor storage: record not found")

// BunPersister writes status columns with a primary-key scoped UPDATE.
type BunPersister struct {
	db bun.IDB
}

var _ TxPersister = (*BunPersister)(nil)

// NewBunPersister returns a persister bound to db, which may be a *bun.DB or
// a bun.Tx.
func NewBunPersister(db bun.IDB) *BunPersister {
	return &BunPersister{db: db}
}

// Save updates only columns of entity. entity must be a pointer to a bun
// model with a primary key.
func (p *BunPersister) Save(ctx context.Context, entity any, columns ...string) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("statusfor storage: database not configured")
	}
	if len(columns) == 0 {
		return nil
	}
	res, err := p.db.NewUpdate().
		Model(entity).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update status columns %v: %w", columns, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return goerrors.Wrap(ErrRecordNotFound, goerrors.CategoryNotFound, fmt.Sprintf("no row updated for %T", entity)).
			WithTextCode("STATUS_RECORD_NOT_FOUND")
	}
	return nil
}

// TxPersister is a persister that can write through a caller supplied
// transaction. Contextual hands it the transaction opened by WithinTx.
type TxPersister interface {
	interfaces.Persister
	SaveTx(ctx context.Context, tx bun.IDB, entity any, columns ...string) error
}

// SaveTx updates columns of entity through tx.
func (p *BunPersister) SaveTx(ctx context.Context, tx bun.IDB, entity any, columns ...string) error {
	return NewBunPersister(tx).Save(ctx, entity, columns...)
}

type txKey struct{}

type txScope struct {
	tx          bun.IDB
	mu          sync.Mutex
	afterCommit []func(context.Context)
}

// TxFromContext returns the transaction opened by WithinTx, if any.
func TxFromContext(ctx context.Context) (bun.IDB, bool) {
	scope := scopeFromContext(ctx)
	if scope == nil {
		return nil, false
	}
	return scope.tx, true
}

// OnCommit runs fn once the transaction carried by ctx commits. Outside of a
// transaction fn runs immediately. Hooks are dropped on rollback.
func OnCommit(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	scope := scopeFromContext(ctx)
	if scope == nil {
		fn(ctx)
		return
	}
	scope.mu.Lock()
	scope.afterCommit = append(scope.afterCommit, fn)
	scope.mu.Unlock()
}

func scopeFromContext(ctx context.Context) *txScope {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(txKey{}).(*txScope)
	return scope
}

// Contextual returns a persister that writes through the transaction carried
// by the call context and otherwise delegates to fallback. Inside a
// transaction a TxPersister fallback receives the transaction, any other
// fallback is bypassed for a plain column update. A nil fallback keeps writes
// in memory outside of WithinTx.
func Contextual(fallback interfaces.Persister) interfaces.Persister {
	return interfaces.PersisterFunc(func(ctx context.Context, entity any, columns ...string) error {
		if tx, ok := TxFromContext(ctx); ok {
			if txp, ok := fallback.(TxPersister); ok {
				return txp.SaveTx(ctx, tx, entity, columns...)
			}
			return NewBunPersister(tx).Save(ctx, entity, columns...)
		}
		if fallback == nil {
			return nil
		}
		return fallback.Save(ctx, entity, columns...)
	})
}

// WithinTx runs fn inside a transaction of db. Contextual persisters reached
// with the context handed to fn write through the transaction, so a status
// string either applies completely or not at all. OnCommit hooks registered
// by fn run after a successful commit.
func WithinTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	scope := &txScope{}
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		scope.tx = tx
		return fn(context.WithValue(ctx, txKey{}, scope))
	})
	if err != nil {
		return err
	}
	scope.mu.Lock()
	hooks := scope.afterCommit
	scope.afterCommit = nil
	scope.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx)
	}
	return nil
}
