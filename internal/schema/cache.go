package schema

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
)

// Cache holds derived SchemaDescriptors keyed by fingerprint. Read-mostly:
// entries are replaced whole when a fingerprint changes, never mutated in
// place, so concurrent readers always see a consistent descriptor.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*model.SchemaDescriptor
}

// NewCache creates an empty descriptor cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*model.SchemaDescriptor)}
}

// Get returns the cached descriptor for a fingerprint, or nil.
func (c *Cache) Get(fingerprint string) *model.SchemaDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[fingerprint]
}

// Put stores a descriptor under its fingerprint, replacing any previous
// entry. The descriptor must not be modified by the caller afterwards.
func (c *Cache) Put(desc *model.SchemaDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[desc.Fingerprint]; !exists {
		zap.L().Info("schema: caching descriptor",
			zap.String("fingerprint", desc.Fingerprint),
			zap.Int("tables", len(desc.Tables)),
			zap.Bool("tier1", desc.DerivedViaTier1),
		)
	}
	c.entries[desc.Fingerprint] = desc
}

// Resolve returns the cached descriptor for the given introspection
// snapshot, deriving and caching it on first sight of the fingerprint.
// The derive function runs outside the lock; when two requests race on a
// new fingerprint the second Put wins, which is harmless because Analyze
// is deterministic.
func (c *Cache) Resolve(tables []model.Table, derive func([]model.Table) *model.SchemaDescriptor) *model.SchemaDescriptor {
	fp := Fingerprint(tables)
	if d := c.Get(fp); d != nil {
		return d
	}

	d := derive(tables)
	c.Put(d)
	return d
}

// Len reports how many distinct fingerprints are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
