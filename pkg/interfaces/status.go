package interfaces

import "context"

// Persister stores an entity after one of its status timestamps changed.
// Columns lists the timestamp columns touched by the mutation; implementations
// may ignore it and save the full record. Errors are returned to the caller
// unchanged.
type Persister interface {
	Save(ctx context.Context, entity any, columns ...string) error
}

// PersisterFunc adapts a plain function to the Persister contract.
type PersisterFunc func(ctx context.Context, entity any, columns ...string) error

// Save implements Persister.
func (f PersisterFunc) Save(ctx context.Context, entity any, columns ...string) error {
	return f(ctx, entity, columns...)
}

// TransitionObserver receives every status change that was actually applied.
// Redundant activations or deactivations are not reported.
type TransitionObserver interface {
	StatusChanged(entityType, status string, active bool)
}
