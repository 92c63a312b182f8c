package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds named factories and named instances of one provider kind.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	instances map[string]T
}

// NewRegistry creates an empty Registry.
func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]Factory[T]),
		instances: make(map[string]T),
	}
}

// RegisterFactory registers a factory under name.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds a new provider with the named factory.
func (r *Registry[T]) Create(name string, cfg map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("provider factory %q not registered", name)
	}
	return factory(cfg)
}

// Set stores an instance under name, replacing any previous one.
func (r *Registry[T]) Set(name string, instance T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = instance
}

// Get returns the instance stored under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Names returns the sorted instance names.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factories returns the sorted factory names.
func (r *Registry[T]) Factories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns the names of instances reporting IsAvailable, sorted.
// Instances are checked concurrently.
func (r *Registry[T]) Available(ctx context.Context) []string {
	r.mu.RLock()
	snapshot := make(map[string]T, len(r.instances))
	for k, v := range r.instances {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []string
	)
	for name, inst := range snapshot {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if inst.IsAvailable(ctx) {
				mu.Lock()
				out = append(out, name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	sort.Strings(out)
	return out
}
