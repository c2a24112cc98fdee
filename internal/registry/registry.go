// Package registry shares expensive model handles between index instances.
// Handles are reference counted: the first Acquire of a name loads the model,
// later Acquires reuse it, and the Release that drops the count to zero closes
// it. Concurrent first Acquires of one name run the loader exactly once.
package registry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Loader produces a model handle. It is invoked at most once per load cycle
// of a name.
type Loader[H io.Closer] func() (H, error)

type entry[H io.Closer] struct {
	handle H
	err    error
	refs   int
	ready  chan struct{}
}

// Registry is a reference-counted cache of model handles keyed by name.
type Registry[H io.Closer] struct {
	mu      sync.Mutex
	entries map[string]*entry[H]
	logger  *slog.Logger
	onLoad  func(name string)
	onFree  func(name string)
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	onLoad func(string)
	onFree func(string)
}

// WithHooks registers callbacks fired after a model is loaded and after it
// is freed. They are used for metrics.
func WithHooks(onLoad, onFree func(name string)) Option {
	return func(o *options) {
		o.onLoad = onLoad
		o.onFree = onFree
	}
}

// New creates an empty Registry.
func New[H io.Closer](opts ...Option) *Registry[H] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[H]{
		entries: make(map[string]*entry[H]),
		logger:  slog.Default().With("component", "model-registry"),
		onLoad:  o.onLoad,
		onFree:  o.onFree,
	}
}

// Acquire returns the handle registered under name, loading it with load if
// no holder currently exists. Every successful Acquire must be paired with a
// Release.
func (r *Registry[H]) Acquire(name string, load Loader[H]) (H, error) {
	r.mu.Lock()
	if e, ok := r.entries[name]; ok {
		e.refs++
		r.mu.Unlock()
		<-e.ready
		if e.err != nil {
			var zero H
			return zero, e.err
		}
		return e.handle, nil
	}

	e := &entry[H]{refs: 1, ready: make(chan struct{})}
	r.entries[name] = e
	r.mu.Unlock()

	r.logger.Info("loading model", "model", name)
	handle, err := r.load(name, e, load)
	if err != nil {
		var zero H
		return zero, err
	}
	if r.onLoad != nil {
		r.onLoad(name)
	}
	return handle, nil
}

// load runs the loader for e and publishes its outcome to waiters. A panic
// in the loader becomes an error so the entry is always finished.
func (r *Registry[H]) load(name string, e *entry[H], load Loader[H]) (handle H, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader panicked: %v", p)
		}
		if err != nil {
			err = fmt.Errorf("loading model %s: %w", name, err)
		}
		r.mu.Lock()
		e.handle, e.err = handle, err
		if err != nil && r.entries[name] == e {
			delete(r.entries, name)
		}
		r.mu.Unlock()
		close(e.ready)
	}()
	return load()
}

// Release drops one reference to name. The handle is closed once no
// references remain.
func (r *Registry[H]) Release(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("releasing model %s: not acquired", name)
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.entries, name)
	r.mu.Unlock()

	r.logger.Info("freeing model", "model", name)
	if r.onFree != nil {
		r.onFree(name)
	}
	if err := e.handle.Close(); err != nil {
		return fmt.Errorf("closing model %s: %w", name, err)
	}
	return nil
}

// RefCount reports the current number of holders of name.
func (r *Registry[H]) RefCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		return e.refs
	}
	return 0
}

// Loaded returns the names with at least one holder.
func (r *Registry[H]) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
