package installer

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/goliatone/go-statusfor/internal/evaluator"
	"github.com/goliatone/go-statusfor/internal/fields"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/internal/predicate"
	"github.com/goliatone/go-statusfor/internal/registry"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

// Result reports the outcome of an installation.
type Result struct {
	// AllFieldsPresent is false when at least one status had no backing field.
	AllFieldsPresent bool
	// Installed lists the statuses that received operations and filters.
	Installed []string
	// Missing lists the statuses skipped for lack of a timestamp field.
	Missing []string
}

// Callback runs after a complete installation. It can define derived
// filters on the scope.
type Callback func(scope *Scope) error

type installOptions struct {
	callback  Callback
	persister interfaces.Persister
}

// Option configures a single Install call.
type Option func(*installOptions)

// WithCallback registers the post-install callback. It only runs when every
// status had a backing field.
func WithCallback(callback Callback) Option {
	return func(o *installOptions) {
		o.callback = callback
	}
}

// WithPersister sets the persister used for this entity type, overriding the
// installer default.
func WithPersister(persister interfaces.Persister) Option {
	return func(o *installOptions) {
		o.persister = persister
	}
}

// Installer wires status configurations into per-type operation and filter
// tables.
type Installer struct {
	mu        sync.RWMutex
	registry  *registry.Registry
	fields    *fields.Inspector
	evaluator *evaluator.Evaluator
	logger    interfaces.Logger
	persister interfaces.Persister
	installed map[reflect.Type]*Installation
}

// InstallerOption configures the installer.
type InstallerOption func(*Installer)

// WithLogger sets the installer logger.
func WithLogger(logger interfaces.Logger) InstallerOption {
	return func(in *Installer) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithDefaultPersister sets the persister used when Install receives none.
func WithDefaultPersister(persister interfaces.Persister) InstallerOption {
	return func(in *Installer) {
		in.persister = persister
	}
}

// New constructs an installer.
func New(reg *registry.Registry, inspector *fields.Inspector, eval *evaluator.Evaluator, opts ...InstallerOption) *Installer {
	if reg == nil {
		reg = registry.New()
	}
	if inspector == nil {
		inspector = fields.NewInspector()
	}
	if eval == nil {
		eval = evaluator.New(inspector)
	}
	in := &Installer{
		registry:  reg,
		fields:    inspector,
		evaluator: eval,
		logger:    logging.NoOp(),
		installed: make(map[reflect.Type]*Installation),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Install configures statuses for the type of model. Statuses whose
// <name>_at field is missing are logged and skipped; the callback only runs
// when nothing was skipped. The returned error covers invalid input and
// callback failures.
func (in *Installer) Install(model any, statuses []string, opts ...Option) (Result, error) {
	t, err := fields.StructType(model)
	if err != nil {
		return Result{}, err
	}
	for _, status := range statuses {
		if err := domain.ValidateName(status); err != nil {
			return Result{}, domain.NewInvalidStatusNameError(status, err)
		}
	}

	options := installOptions{persister: in.persister}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := in.registry.Configure(t, statuses)
	logger := logging.WithStatusContext(in.logger, t.String(), "")

	result := Result{AllFieldsPresent: true}
	var active []string
	for _, status := range statuses {
		column := domain.FieldName(status)
		if !in.fields.HasTimestamp(t, column) {
			logger.Warn("status.install.field_missing", "status", status, "column", column)
			result.AllFieldsPresent = false
			result.Missing = appendUnique(result.Missing, status)
			continue
		}
		active = appendUnique(active, status)
	}
	result.Installed = active

	inst := newInstallation(t, cfg, active, options.persister)
	inst.installOperations(in.evaluator)
	inst.installFilters()

	in.mu.Lock()
	in.installed[t] = inst
	in.mu.Unlock()

	logger.Info("status.install.completed", "installed", active, "missing", result.Missing)

	if result.AllFieldsPresent && options.callback != nil {
		if err := options.callback(&Scope{inst: inst}); err != nil {
			return result, fmt.Errorf("status install callback for %s: %w", t, err)
		}
	}
	return result, nil
}

// Resolve returns the installation governing model: its own, or the one of
// the nearest embedded type with a configuration. Types without any
// configuration resolve to an empty installation.
func (in *Installer) Resolve(model any) (*Installation, error) {
	t, err := fields.StructType(model)
	if err != nil {
		return nil, err
	}
	return in.resolveType(t), nil
}

func (in *Installer) resolveType(t reflect.Type) *Installation {
	owner, cfg, ok := in.registry.Resolve(t)
	if !ok {
		return newInstallation(t, &registry.Configuration{}, nil, nil)
	}

	in.mu.RLock()
	inst, found := in.installed[owner]
	in.mu.RUnlock()
	if !found {
		return newInstallation(owner, cfg, nil, nil)
	}
	return inst
}

// Installation is the operation and filter table of one entity type.
type Installation struct {
	typ     reflect.Type
	binding *evaluator.Binding

	mu      sync.RWMutex
	filters map[string]predicate.Expr
}

func newInstallation(t reflect.Type, cfg *registry.Configuration, statuses []string, persister interfaces.Persister) *Installation {
	return &Installation{
		typ: t,
		binding: &evaluator.Binding{
			EntityType: t.String(),
			Config:     cfg,
			Statuses:   statuses,
			Operations: make(map[string]evaluator.Operation),
			Persister:  persister,
		},
		filters: make(map[string]predicate.Expr),
	}
}

func (i *Installation) installOperations(eval *evaluator.Evaluator) {
	b := i.binding
	for _, status := range b.Statuses {
		status := status
		b.Operations[domain.QueryOperation(status)] = func(_ context.Context, entity any) (bool, error) {
			return eval.IsActive(b, entity, status)
		}
		b.Operations[domain.ActivateOperation(status)] = func(ctx context.Context, entity any) (bool, error) {
			if err := eval.Activate(ctx, b, entity, status); err != nil {
				return false, err
			}
			return true, nil
		}
		b.Operations[domain.DeactivateOperation(status)] = func(ctx context.Context, entity any) (bool, error) {
			if err := eval.Deactivate(ctx, b, entity, status); err != nil {
				return false, err
			}
			return false, nil
		}
	}
}

func (i *Installation) installFilters() {
	statuses := i.binding.Statuses
	for _, status := range statuses {
		i.filters[status] = predicate.HasStatus(status, statuses)
		i.filters[domain.OffEvent(status)] = predicate.LacksStatus(status, statuses)
	}
}

// Type returns the entity type owning the installation.
func (i *Installation) Type() reflect.Type {
	return i.typ
}

// Binding returns the evaluator binding of the installation.
func (i *Installation) Binding() *evaluator.Binding {
	return i.binding
}

// Statuses lists the active statuses in declaration order.
func (i *Installation) Statuses() []string {
	out := make([]string, len(i.binding.Statuses))
	copy(out, i.binding.Statuses)
	return out
}

// Operation looks up an instance operation by name.
func (i *Installation) Operation(name string) (evaluator.Operation, bool) {
	op, ok := i.binding.Operations[name]
	return op, ok
}

// Operations lists the installed operation names, sorted.
func (i *Installation) Operations() []string {
	names := make([]string, 0, len(i.binding.Operations))
	for name := range i.binding.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter returns the filter registered under name. Names of the form
// status_including_<a>_and_<b> are resolved on demand.
func (i *Installation) Filter(name string) (predicate.Expr, error) {
	i.mu.RLock()
	expr, ok := i.filters[name]
	i.mu.RUnlock()
	if ok {
		return expr, nil
	}

	statuses, matched, err := domain.ParseIncluding(name, i.binding.Statuses)
	if !matched {
		return nil, domain.NewUnknownFilterError(name)
	}
	if err != nil {
		return nil, err
	}
	return predicate.EverHadAll(statuses), nil
}

// Filters lists the installed filter names, sorted.
func (i *Installation) Filters() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.filters))
	for name := range i.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (i *Installation) define(name string, expr predicate.Expr) error {
	if err := domain.ValidateFilterName(name); err != nil {
		return domain.NewInvalidStatusNameError(name, err)
	}
	for _, column := range predicate.Columns(expr) {
		if !i.hasColumn(column) {
			return domain.NewUnknownStatusError(column)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.filters[name]; exists {
		return fmt.Errorf("status filter %q already defined on %s", name, i.typ)
	}
	i.filters[name] = expr
	return nil
}

func (i *Installation) hasColumn(column string) bool {
	for _, status := range i.binding.Statuses {
		if domain.FieldName(status) == column {
			return true
		}
	}
	return false
}

// Scope is handed to install callbacks.
type Scope struct {
	inst *Installation
}

// Type returns the entity type being installed.
func (s *Scope) Type() reflect.Type {
	return s.inst.typ
}

// Filter returns an installed or dynamically resolved filter.
func (s *Scope) Filter(name string) (predicate.Expr, error) {
	return s.inst.Filter(name)
}

// Define registers a derived filter under name. The expression may only
// reference columns of installed statuses.
func (s *Scope) Define(name string, expr predicate.Expr) error {
	return s.inst.define(name, expr)
}

// DefineAll registers name as the conjunction of existing filters.
func (s *Scope) DefineAll(name string, filters ...string) error {
	expr := predicate.And{}
	for _, filter := range filters {
		part, err := s.inst.Filter(filter)
		if err != nil {
			return err
		}
		expr = append(expr, part)
	}
	return s.Define(name, expr)
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
