package controltask

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an uninitialized task.
type Factory func(deps Deps) ControlTask

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(name string, f Factory) {
	if name == "" || f == nil {
		panic("controltask: Register needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		panic(fmt.Sprintf("controltask: %s registered twice", name))
	}
	r.factories[name] = f
}

// New builds the task registered under name. The task must report the same
// name, since that is the identity its configuration is resolved by.
func (r *Registry) New(name string, deps Deps) (ControlTask, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	task := f(deps)
	if task == nil {
		return nil, fmt.Errorf("controltask: factory for %s returned nil", name)
	}
	if task.Name() != name {
		return nil, fmt.Errorf("controltask: factory for %s built a task named %q", name, task.Name())
	}
	return task, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

func New(name string, deps Deps) (ControlTask, error) { return defaultRegistry.New(name, deps) }

func Names() []string { return defaultRegistry.Names() }
