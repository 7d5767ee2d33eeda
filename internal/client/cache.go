package client

import (
	"sync"

	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

type featureKey struct {
	contextID int64
	name      string // folded
}

// Cache holds the dimension rows of one client store, keyed by folded
// name. It belongs to a single Manager and lives as long as that
// Manager's session with the store.
//
// Thread-safety: Cache is safe for concurrent use via internal mutex.
type Cache struct {
	mu       sync.RWMutex
	loaded   bool
	contexts map[string]model.Context
	steps    map[string]model.Step
	features map[featureKey]model.Feature
}

// NewCache creates an empty, unloaded cache.
func NewCache() *Cache {
	c := &Cache{}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.loaded = false
	c.contexts = make(map[string]model.Context)
	c.steps = make(map[string]model.Step)
	c.features = make(map[featureKey]model.Feature)
}

// Reset empties the cache and marks it unloaded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Loaded reports whether the cache was filled from the store since the
// last Reset.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached contexts, steps and features.
func (c *Cache) Len() (contexts, steps, features int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contexts), len(c.steps), len(c.features)
}

// Context looks a context up by name.
func (c *Cache) Context(name string) (model.Context, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.contexts[store.Fold(name)]
	return v, ok
}

// Step looks a step up by name.
func (c *Cache) Step(name string) (model.Step, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.steps[store.Fold(name)]
	return v, ok
}

// Feature looks a feature up by context id and name.
func (c *Cache) Feature(contextID int64, name string) (model.Feature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.features[featureKey{contextID, store.Fold(name)}]
	return v, ok
}

// PutContext caches a context row.
func (c *Cache) PutContext(v model.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[store.Fold(v.Name)] = v
}

// PutStep caches a step row.
func (c *Cache) PutStep(v model.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[store.Fold(v.Name)] = v
}

// PutFeature caches a feature row.
func (c *Cache) PutFeature(v model.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features[featureKey{v.ContextID, store.Fold(v.Name)}] = v
}

// replace swaps in a complete set of rows and marks the cache loaded.
func (c *Cache) replace(contexts []model.Context, steps []model.Step, features []model.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for _, v := range contexts {
		c.contexts[store.Fold(v.Name)] = v
	}
	for _, v := range steps {
		c.steps[store.Fold(v.Name)] = v
	}
	for _, v := range features {
		c.features[featureKey{v.ContextID, store.Fold(v.Name)}] = v
	}
	c.loaded = true
}
