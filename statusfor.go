package statusfor

import (
	"context"
	"fmt"
	"strings"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/goliatone/go-statusfor/internal/evaluator"
	"github.com/goliatone/go-statusfor/internal/fields"
	"github.com/goliatone/go-statusfor/internal/installer"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/internal/logging/console"
	"github.com/goliatone/go-statusfor/internal/logging/gologger"
	"github.com/goliatone/go-statusfor/internal/metrics"
	"github.com/goliatone/go-statusfor/internal/predicate"
	"github.com/goliatone/go-statusfor/internal/query"
	"github.com/goliatone/go-statusfor/internal/registry"
	"github.com/goliatone/go-statusfor/internal/storage"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// Expr is a status filter expression over timestamp columns.
type Expr = predicate.Expr

// InstallResult reports which statuses received operations.
type InstallResult = installer.Result

// InstallOption configures a single Install call.
type InstallOption = installer.Option

// Scope is handed to install callbacks to define derived filters.
type Scope = installer.Scope

// Persister stores an entity after a status change.
type Persister = interfaces.Persister

// PersisterFunc adapts a function to Persister.
type PersisterFunc = interfaces.PersisterFunc

// WithCallback registers a post-install callback. It runs only when every
// status had a backing timestamp field.
func WithCallback(callback func(*Scope) error) InstallOption {
	return installer.WithCallback(callback)
}

// WithInstallPersister overrides the module persister for one entity type.
func WithInstallPersister(persister Persister) InstallOption {
	return installer.WithPersister(storage.Contextual(persister))
}

type moduleOptions struct {
	provider   interfaces.LoggerProvider
	clock      func() time.Time
	persister  interfaces.Persister
	db         *bun.DB
	observers  []interfaces.TransitionObserver
	registerer prometheus.Registerer
}

// Option configures a Module.
type Option func(*moduleOptions)

// WithLoggerProvider overrides the provider built from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(o *moduleOptions) {
		o.provider = provider
	}
}

// WithClock overrides the clock used to stamp activations.
func WithClock(clock func() time.Time) Option {
	return func(o *moduleOptions) {
		o.clock = clock
	}
}

// WithPersister sets the persister used by every installed type.
func WithPersister(persister Persister) Option {
	return func(o *moduleOptions) {
		o.persister = persister
	}
}

// WithDB persists status changes through db unless WithPersister is given.
func WithDB(db *bun.DB) Option {
	return func(o *moduleOptions) {
		o.db = db
	}
}

// WithObserver adds a transition observer.
func WithObserver(observer interfaces.TransitionObserver) Option {
	return func(o *moduleOptions) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithRegisterer registers the transition metrics with registerer when
// metrics are enabled.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *moduleOptions) {
		o.registerer = registerer
	}
}

// Module is the entry point of the status runtime.
type Module struct {
	cfg       Config
	provider  interfaces.LoggerProvider
	logger    interfaces.Logger
	fields    *fields.Inspector
	registry  *registry.Registry
	evaluator *evaluator.Evaluator
	installer *installer.Installer
	collector *metrics.Collector
	cache     repocache.CacheService
}

// New validates cfg and wires the status runtime.
func New(cfg Config, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := moduleOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	provider := options.provider
	if provider == nil {
		built, err := newLoggerProvider(cfg.Logging)
		if err != nil {
			return nil, err
		}
		provider = built
	}

	m := &Module{
		cfg:      cfg,
		provider: provider,
		logger:   logging.ModuleLogger(provider, ""),
		fields:   fields.NewInspector(),
	}

	observers := append([]interfaces.TransitionObserver(nil), options.observers...)
	if cfg.Metrics.Enabled {
		m.collector = metrics.NewCollector(cfg.Metrics.Namespace)
		if options.registerer != nil {
			if err := options.registerer.Register(m.collector); err != nil {
				return nil, fmt.Errorf("register status metrics: %w", err)
			}
		}
		observers = append(observers, m.collector)
	}

	if cfg.Cache.Enabled {
		cacheCfg := repocache.DefaultConfig()
		if cfg.Cache.TTL > 0 {
			cacheCfg.TTL = cfg.Cache.TTL
		}
		service, err := repocache.NewCacheService(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("status repository cache: %w", err)
		}
		m.cache = service
	}

	evalOpts := []evaluator.Option{
		evaluator.WithLogger(logging.EvaluatorLogger(provider)),
		evaluator.WithOverwrite(cfg.Mutations.OverwriteOnActivate),
		evaluator.WithIgnoreUnknown(cfg.Mutations.IgnoreUnknown),
	}
	if options.clock != nil {
		evalOpts = append(evalOpts, evaluator.WithClock(options.clock))
	}
	if len(observers) > 0 {
		evalOpts = append(evalOpts, evaluator.WithObserver(fanOut(observers)))
	}
	m.evaluator = evaluator.New(m.fields, evalOpts...)

	persister := options.persister
	if persister == nil && options.db != nil {
		persister = storage.NewBunPersister(options.db)
	}
	m.registry = registry.New(registry.WithLogger(logging.RegistryLogger(provider)))
	m.installer = installer.New(m.registry, m.fields, m.evaluator,
		installer.WithLogger(logging.InstallerLogger(provider)),
		installer.WithDefaultPersister(storage.Contextual(persister)),
	)
	return m, nil
}

func newLoggerProvider(cfg LoggingConfig) (interfaces.LoggerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		return gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
	default:
		options := console.Options{}
		if level, ok := console.ParseLevel(cfg.Level); ok {
			options.MinLevel = &level
		}
		return console.NewProvider(options), nil
	}
}

// Config returns the configuration the module was built with.
func (m *Module) Config() Config {
	return m.cfg
}

// LoggerProvider returns the provider behind the module loggers.
func (m *Module) LoggerProvider() interfaces.LoggerProvider {
	return m.provider
}

// Collector returns the transition metrics, or nil when metrics are disabled.
func (m *Module) Collector() *metrics.Collector {
	return m.collector
}

// Install configures statuses for the type of model. Statuses without a
// <name>_at timestamp field are skipped and reported in the result.
func (m *Module) Install(model any, statuses []string, opts ...InstallOption) (InstallResult, error) {
	return m.installer.Install(model, statuses, opts...)
}

// Statuses lists the active statuses governing model.
func (m *Module) Statuses(model any) ([]string, error) {
	inst, err := m.installer.Resolve(model)
	if err != nil {
		return nil, err
	}
	return inst.Statuses(), nil
}

// Events lists the configured on events followed by their off events.
func (m *Module) Events(model any) ([]string, error) {
	inst, err := m.installer.Resolve(model)
	if err != nil {
		return nil, err
	}
	cfg := inst.Binding().Config
	events := make([]string, 0, len(cfg.On)+len(cfg.Off))
	events = append(events, cfg.On...)
	return append(events, cfg.Off...), nil
}

// Operations lists the instance operations installed for model.
func (m *Module) Operations(model any) ([]string, error) {
	inst, err := m.installer.Resolve(model)
	if err != nil {
		return nil, err
	}
	return inst.Operations(), nil
}

// Invoke runs a named operation: <name>?, <name>! or not_<name>!. It returns
// the status state after the operation.
func (m *Module) Invoke(ctx context.Context, entity any, operation string) (bool, error) {
	inst, err := m.installer.Resolve(entity)
	if err != nil {
		return false, err
	}
	op, ok := inst.Operation(operation)
	if !ok {
		return false, domain.NewUnknownStatusError(operation)
	}
	return op(ctx, entity)
}

// IsActive reports whether status has a timestamp on entity.
func (m *Module) IsActive(entity any, status string) (bool, error) {
	b, err := m.binding(entity)
	if err != nil {
		return false, err
	}
	return m.evaluator.IsActive(b, entity, status)
}

// Activate stamps status with the current time and persists entity.
func (m *Module) Activate(ctx context.Context, entity any, status string) error {
	b, err := m.binding(entity)
	if err != nil {
		return err
	}
	return m.evaluator.Activate(ctx, b, entity, status)
}

// Deactivate clears status and persists entity.
func (m *Module) Deactivate(ctx context.Context, entity any, status string) error {
	b, err := m.binding(entity)
	if err != nil {
		return err
	}
	return m.evaluator.Deactivate(ctx, b, entity, status)
}

// History lists the active statuses of entity, most recent first.
func (m *Module) History(entity any) ([]string, error) {
	b, err := m.binding(entity)
	if err != nil {
		return nil, err
	}
	return m.evaluator.History(b, entity)
}

// Status returns the history as a space separated status string.
func (m *Module) Status(entity any) (string, error) {
	b, err := m.binding(entity)
	if err != nil {
		return "", err
	}
	return m.evaluator.Status(b, entity)
}

// Current returns the most recent active status, or "". On equal timestamps
// the earlier declared status wins here while the strict <name> filter
// matches none of the tied statuses.
func (m *Module) Current(entity any) (string, error) {
	b, err := m.binding(entity)
	if err != nil {
		return "", err
	}
	return m.evaluator.Current(b, entity)
}

// SetStatus applies a status string. A blank string clears every status;
// otherwise tokens activate statuses, or clear them when prefixed with not_.
func (m *Module) SetStatus(ctx context.Context, entity any, text string) error {
	b, err := m.binding(entity)
	if err != nil {
		return err
	}
	return m.evaluator.Apply(ctx, b, entity, text)
}

// SetStatusTx applies a status string inside a transaction of db. Either
// every token is stored or none is.
func (m *Module) SetStatusTx(ctx context.Context, db *bun.DB, entity any, text string) error {
	return storage.WithinTx(ctx, db, func(ctx context.Context) error {
		return m.SetStatus(ctx, entity, text)
	})
}

// Filter returns the named filter of model: <name>, not_<name>, a derived
// filter, or status_including_<a>_and_<b>.
func (m *Module) Filter(model any, name string) (Expr, error) {
	inst, err := m.installer.Resolve(model)
	if err != nil {
		return nil, err
	}
	return inst.Filter(name)
}

// Filters lists the installed filter names of model.
func (m *Module) Filters(model any) ([]string, error) {
	inst, err := m.installer.Resolve(model)
	if err != nil {
		return nil, err
	}
	return inst.Filters(), nil
}

// Query returns a select over model restricted by the named filter.
func (m *Module) Query(db bun.IDB, model any, name string) (*bun.SelectQuery, error) {
	expr, err := m.Filter(model, name)
	if err != nil {
		return nil, err
	}
	return query.Apply(db.NewSelect().Model(model), expr)
}

// Matches evaluates the named filter against an in-memory entity.
func (m *Module) Matches(entity any, name string) (bool, error) {
	expr, err := m.Filter(entity, name)
	if err != nil {
		return false, err
	}
	var lookupErr error
	matched := predicate.Eval(expr, func(column string) (time.Time, bool) {
		at, ok, err := m.fields.Get(entity, column)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return at, ok
	})
	if lookupErr != nil {
		return false, lookupErr
	}
	return matched, nil
}

func (m *Module) binding(entity any) (*evaluator.Binding, error) {
	inst, err := m.installer.Resolve(entity)
	if err != nil {
		return nil, err
	}
	return inst.Binding(), nil
}

type observers []interfaces.TransitionObserver

func fanOut(list []interfaces.TransitionObserver) interfaces.TransitionObserver {
	if len(list) == 1 {
		return list[0]
	}
	return observers(list)
}

func (o observers) StatusChanged(entityType, status string, active bool) {
	for _, observer := range o {
		observer.StatusChanged(entityType, status, active)
	}
}
