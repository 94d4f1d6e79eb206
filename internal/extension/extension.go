// Package extension implements the small, rarely-mutated concurrent
// registry of Index Core collaborators notified after every successful
// write.
package extension

import (
	"fmt"
	"sync"

	"GoSearch/internal/document"
)

// Extension is notified whenever a batch of documents is indexed, and torn
// down when its owning index is disposed.
type Extension interface {
	OnDocumentsIndexed(docs []document.Document) error
	Dispose() error
}

// Registry is a concurrent map of named extensions. Reads (Range, TryGet)
// vastly outnumber writes (TryAdd happens once per extension at index
// setup), so a sync.Map is a better fit than a mutex-guarded map.
type Registry struct {
	m sync.Map
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// TryAdd registers ext under key. Returns an error if key is already taken.
func (r *Registry) TryAdd(key string, ext Extension) error {
	if _, loaded := r.m.LoadOrStore(key, ext); loaded {
		return fmt.Errorf("extension: key %q already registered", key)
	}
	return nil
}

// TryGet returns the extension registered under key, if any.
func (r *Registry) TryGet(key string) (Extension, bool) {
	v, ok := r.m.Load(key)
	if !ok {
		return nil, false
	}
	return v.(Extension), true
}

// Remove unregisters the extension under key, if present.
func (r *Registry) Remove(key string) {
	r.m.Delete(key)
}

// Range calls fn for every registered extension. Iteration order is
// unspecified.
func (r *Registry) Range(fn func(key string, ext Extension) bool) {
	r.m.Range(func(k, v any) bool {
		return fn(k.(string), v.(Extension))
	})
}

// NotifyIndexed calls OnDocumentsIndexed on every registered extension,
// collecting (not stopping on) individual failures.
func (r *Registry) NotifyIndexed(docs []document.Document) []error {
	var errs []error
	r.Range(func(key string, ext Extension) bool {
		if err := ext.OnDocumentsIndexed(docs); err != nil {
			errs = append(errs, fmt.Errorf("extension %q: %w", key, err))
		}
		return true
	})
	return errs
}

// DisposeAll disposes every registered extension, collecting (not stopping
// on) individual failures.
func (r *Registry) DisposeAll() []error {
	var errs []error
	r.Range(func(key string, ext Extension) bool {
		if err := ext.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("extension %q: %w", key, err))
		}
		return true
	})
	return errs
}
