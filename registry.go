package beacon

import (
	"context"
	"sort"
	"sync"

	"github.com/zoobzio/capitan"
)

// Constructor creates one candidate value of an experiment module. Modules
// may register helpers alongside their experiment; only values implementing
// Experiment qualify.
type Constructor func() any

// Registry maps experiment module names to their constructors.
// It replaces discovering experiment types at runtime: a module is resolved
// with one explicit validation step in Load.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]Constructor)}
}

// Define declares module without registering anything in it.
func (r *Registry) Define(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[module]; !ok {
		r.modules[module] = make(map[string]Constructor)
	}
}

// Register adds a named constructor to module, replacing any constructor
// previously registered under the same name.
func (r *Registry) Register(module, name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[module]
	if !ok {
		m = make(map[string]Constructor)
		r.modules[module] = m
	}
	m[name] = ctor
}

// Modules returns the registered module names, sorted.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves module to its single experiment. It fails with a *LoadError
// if the module is unknown or does not define exactly one value
// implementing Experiment.
func (r *Registry) Load(ctx context.Context, module string) (Experiment, error) {
	r.mu.RLock()
	m, ok := r.modules[module]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	ctors := make([]Constructor, len(names))
	for i, name := range names {
		ctors[i] = m[name]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, &LoadError{Module: module, Err: ErrModuleNotFound}
	}

	var found []Experiment
	for _, ctor := range ctors {
		if exp, ok := ctor().(Experiment); ok {
			found = append(found, exp)
		}
	}

	switch len(found) {
	case 0:
		return nil, &LoadError{Module: module, Err: ErrNoExperiment}
	case 1:
	default:
		return nil, &LoadError{Module: module, Count: len(found), Err: ErrAmbiguousExperiment}
	}

	updates := "static"
	if _, ok := found[0].(Updater); ok {
		updates = "enabled"
	}
	capitan.Emit(ctx, ExperimentLoaded,
		KeyModule.Field(module),
		KeyUpdates.Field(updates),
	)
	return found[0], nil
}
