package registry

import (
	"reflect"
	"sync"

	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

// Configuration holds the status events configured for one entity type.
type Configuration struct {
	// On lists the configured status names in declaration order.
	On []string
	// Off lists the clearing events; Off[i] clears On[i].
	Off []string

	once sync.Once
	all  map[string]struct{}
}

func newConfiguration(names []string) *Configuration {
	on := make([]string, len(names))
	copy(on, names)
	off := make([]string, len(on))
	for i, name := range on {
		off[i] = domain.OffEvent(name)
	}
	return &Configuration{On: on, Off: off}
}

// AllEvents returns the union of on and off events. The set is computed on
// first use and must not be mutated by callers.
func (c *Configuration) AllEvents() map[string]struct{} {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		c.all = make(map[string]struct{}, len(c.On)+len(c.Off))
		for _, event := range c.Off {
			c.all[event] = struct{}{}
		}
		for _, event := range c.On {
			c.all[event] = struct{}{}
		}
	})
	return c.all
}

// HasEvent reports whether event is an on or off event of the configuration.
func (c *Configuration) HasEvent(event string) bool {
	_, ok := c.AllEvents()[event]
	return ok
}

// Registry stores status configurations keyed by entity type.
type Registry struct {
	mu      sync.RWMutex
	configs map[reflect.Type]*Configuration
	logger  interfaces.Logger
}

// Option configures the registry.
type Option func(*Registry)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		configs: make(map[reflect.Type]*Configuration),
		logger:  logging.NoOp(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure stores names as the configuration of t, replacing any previous
// configuration of that exact type. Embedding types keep their own entries.
func (r *Registry) Configure(t reflect.Type, names []string) *Configuration {
	cfg := newConfiguration(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[t] = cfg
	return cfg
}

// Lookup returns the configuration stored for t itself.
func (r *Registry) Lookup(t reflect.Type) (*Configuration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[t]
	return cfg, ok
}

// Resolve returns the configuration for t, or for the nearest embedded struct
// that has one. Embedded fields are searched depth-first in field order. The
// returned type is the one owning the configuration.
func (r *Registry) Resolve(t reflect.Type) (reflect.Type, *Configuration, bool) {
	r.mu.RLock()
	owner, cfg := r.resolveLocked(t, map[reflect.Type]struct{}{})
	r.mu.RUnlock()

	if cfg == nil {
		r.logger.Warn("status.registry.no_events", "entity_type", typeName(t))
		return nil, nil, false
	}
	return owner, cfg, true
}

// Names returns the on events resolved for t, or nil when nothing is configured.
func (r *Registry) Names(t reflect.Type) []string {
	_, cfg, ok := r.Resolve(t)
	if !ok {
		return nil
	}
	names := make([]string, len(cfg.On))
	copy(names, cfg.On)
	return names
}

func (r *Registry) resolveLocked(t reflect.Type, visited map[reflect.Type]struct{}) (reflect.Type, *Configuration) {
	if t == nil {
		return nil, nil
	}
	if _, seen := visited[t]; seen {
		return nil, nil
	}
	visited[t] = struct{}{}

	if cfg, ok := r.configs[t]; ok {
		return t, cfg
	}
	for _, parent := range Parents(t) {
		if owner, cfg := r.resolveLocked(parent, visited); cfg != nil {
			return owner, cfg
		}
	}
	return nil, nil
}

// Parents lists the struct types embedded anonymously in t, in field order.
func Parents(t reflect.Type) []reflect.Type {
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var parents []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.Anonymous {
			continue
		}
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			parents = append(parents, ft)
		}
	}
	return parents
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
