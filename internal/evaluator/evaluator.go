package evaluator

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/goliatone/go-statusfor/internal/fields"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/internal/registry"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

// Operation is an installed per-status instance operation. Query operations
// report whether the status is set; mutators report the state after running.
type Operation func(ctx context.Context, entity any) (bool, error)

// Binding is everything the evaluator needs to know about one entity type.
type Binding struct {
	// EntityType labels log entries and metrics.
	EntityType string
	// Config is the resolved registry configuration.
	Config *registry.Configuration
	// Statuses lists the active statuses in declaration order.
	Statuses []string
	// Operations maps operation names ("archived?", "archived!",
	// "not_archived!") to their implementation.
	Operations map[string]Operation
	// Persister saves the entity after each mutation. Nil means mutations
	// only touch the in-memory value.
	Persister interfaces.Persister
}

// IsStatus reports whether status is active on the binding.
func (b *Binding) IsStatus(status string) bool {
	if b == nil {
		return false
	}
	for _, candidate := range b.Statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// Evaluator derives and mutates status state from timestamp fields.
type Evaluator struct {
	fields        *fields.Inspector
	now           func() time.Time
	logger        interfaces.Logger
	observer      interfaces.TransitionObserver
	overwrite     bool
	ignoreUnknown bool
}

// Option configures the evaluator.
type Option func(*Evaluator)

// WithClock overrides the clock used for activation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback for applied transitions.
func WithObserver(observer interfaces.TransitionObserver) Option {
	return func(e *Evaluator) {
		e.observer = observer
	}
}

// WithOverwrite makes Activate rewrite the timestamp even when the status is
// already set.
func WithOverwrite(overwrite bool) Option {
	return func(e *Evaluator) {
		e.overwrite = overwrite
	}
}

// WithIgnoreUnknown makes Apply log and skip unsupported tokens instead of
// failing.
func WithIgnoreUnknown(ignore bool) Option {
	return func(e *Evaluator) {
		e.ignoreUnknown = ignore
	}
}

// New constructs an evaluator reading fields through inspector.
func New(inspector *fields.Inspector, opts ...Option) *Evaluator {
	if inspector == nil {
		inspector = fields.NewInspector()
	}
	e := &Evaluator{
		fields: inspector,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsActive reports whether state is set on entity.
func (e *Evaluator) IsActive(b *Binding, entity any, state string) (bool, error) {
	if !b.IsStatus(state) {
		return false, domain.NewUnknownStatusError(state)
	}
	_, ok, err := e.fields.Get(entity, domain.FieldName(state))
	return ok, err
}

// Activate sets state to the current instant and persists the entity. An
// already active status is left untouched unless overwrite is enabled.
func (e *Evaluator) Activate(ctx context.Context, b *Binding, entity any, state string) error {
	active, err := e.IsActive(b, entity, state)
	if err != nil {
		return err
	}
	if active && !e.overwrite {
		return nil
	}
	now := e.now()
	return e.write(ctx, b, entity, state, &now)
}

// Deactivate clears state and persists the entity. An inactive status is
// left untouched.
func (e *Evaluator) Deactivate(ctx context.Context, b *Binding, entity any, state string) error {
	active, err := e.IsActive(b, entity, state)
	if err != nil {
		return err
	}
	if !active {
		return nil
	}
	return e.write(ctx, b, entity, state, nil)
}

func (e *Evaluator) write(ctx context.Context, b *Binding, entity any, state string, value *time.Time) error {
	column := domain.FieldName(state)
	if err := e.fields.Set(entity, column, value); err != nil {
		return err
	}

	logger := logging.WithStatusContext(e.logger, b.EntityType, state).WithContext(ctx)
	if b.Persister != nil {
		if err := b.Persister.Save(ctx, entity, column); err != nil {
			logger.Error("status.persist.failed", "column", column, "error", err)
			return err
		}
	}

	active := value != nil
	logger.Debug("status.changed", "column", column, "active", active)
	if e.observer != nil {
		e.observer.StatusChanged(b.EntityType, state, active)
	}
	return nil
}

type stamped struct {
	status string
	at     time.Time
}

// History returns the active statuses ordered from most to least recent.
// Statuses set at the same instant keep their declaration order.
func (e *Evaluator) History(b *Binding, entity any) ([]string, error) {
	if b == nil {
		return nil, nil
	}
	var set []stamped
	seen := make(map[string]struct{}, len(b.Statuses))
	for _, status := range b.Statuses {
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		at, ok, err := e.fields.Get(entity, domain.FieldName(status))
		if err != nil {
			return nil, err
		}
		if ok {
			set = append(set, stamped{status: status, at: at})
		}
	}
	sort.SliceStable(set, func(i, j int) bool {
		return set[i].at.After(set[j].at)
	})
	history := make([]string, len(set))
	for i, entry := range set {
		history[i] = entry.status
	}
	return history, nil
}

// Status returns the history joined by single spaces, the form accepted back
// by Apply.
func (e *Evaluator) Status(b *Binding, entity any) (string, error) {
	history, err := e.History(b, entity)
	if err != nil {
		return "", err
	}
	return strings.Join(history, " "), nil
}

// Current returns the most recent active status, or "" when none is set.
// Ties resolve by declaration order, so on equal timestamps Current can name
// a status whose strict <name> filter does not match the entity.
func (e *Evaluator) Current(b *Binding, entity any) (string, error) {
	history, err := e.History(b, entity)
	if err != nil || len(history) == 0 {
		return "", err
	}
	return history[0], nil
}

// Apply runs a status string against entity. A blank string clears every
// configured status. Otherwise each whitespace separated token activates a
// status, or clears it when prefixed with not_. Tokens are applied in order
// and each one is persisted before the next runs; a failing token leaves the
// earlier ones applied.
func (e *Evaluator) Apply(ctx context.Context, b *Binding, entity any, text string) error {
	if b == nil {
		b = &Binding{}
	}
	tokens := domain.Tokens(text)
	if len(tokens) == 0 {
		return e.clearAll(ctx, b, entity)
	}

	for _, token := range tokens {
		op, err := e.lookup(b, token)
		if err != nil {
			if e.ignoreUnknown {
				logging.WithStatusContext(e.logger, b.EntityType, token).Warn("status.token.ignored", "error", err)
				continue
			}
			return err
		}
		if _, err := op(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) clearAll(ctx context.Context, b *Binding, entity any) error {
	if b.Config == nil {
		return nil
	}
	for _, event := range b.Config.Off {
		op, ok := b.Operations[domain.EventOperation(event)]
		if !ok {
			continue
		}
		if _, err := op(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) lookup(b *Binding, token string) (Operation, error) {
	if b.Config == nil || !b.Config.HasEvent(token) {
		return nil, domain.NewUnsupportedStatusError(token, "is not a status_at field")
	}
	op, ok := b.Operations[domain.EventOperation(token)]
	if !ok {
		return nil, domain.NewUnsupportedStatusError(token, "has no installed timestamp field")
	}
	return op, nil
}
