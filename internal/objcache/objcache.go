// Package objcache holds one canonical record per object id for the
// lifetime of a scene session.
//
// Records are handed out as *Object handles. Re-hydrating a record updates
// the handle in place, so code holding an earlier handle sees the new fields.
package objcache

import (
	"context"
	"errors"
	"sync"

	"github.com/yourorg/scene-data/internal/types"
)

// ErrNotHydrated is returned by Save on a record that only carries partial
// fields.
var ErrNotHydrated = errors.New("object is not fully loaded")

// Loader fetches the fully hydrated record for id.
type Loader func(ctx context.Context, id types.ObjectID) (*Object, error)

// Saver persists the fields of a fully hydrated record.
type Saver func(ctx context.Context, data types.ObjectData) error

// Object is a handle to a cached record.
type Object struct {
	id types.ObjectID

	mu          sync.RWMutex
	data        types.ObjectData
	full        bool
	descendants []types.ObjectID
	hasDesc     bool
	loader      Loader // nil: already complete
	saver       Saver  // nil: not saveable
}

// ID is fixed for the life of the handle.
func (o *Object) ID() types.ObjectID { return o.id }

// Data returns a copy of the current fields.
func (o *Object) Data() types.ObjectData {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d := o.data
	d.Properties = append([]types.Property(nil), o.data.Properties...)
	d.Descendants = append([]types.ObjectID(nil), o.data.Descendants...)
	return d
}

// Full reports whether the record carries the complete metadata set.
func (o *Object) Full() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.full
}

// Load returns the fully hydrated record. For a complete record this is the
// handle itself; otherwise the bound loader fetches it, which upgrades this
// same handle.
func (o *Object) Load(ctx context.Context) (*Object, error) {
	o.mu.RLock()
	load := o.loader
	o.mu.RUnlock()
	if load == nil {
		return o, nil
	}
	return load(ctx, o.id)
}

// Save persists the current fields.
func (o *Object) Save(ctx context.Context) error {
	o.mu.RLock()
	save := o.saver
	o.mu.RUnlock()
	if save == nil {
		return ErrNotHydrated
	}
	return save(ctx, o.Data())
}

// Descendants returns the cached descendant ids and whether they are known.
func (o *Object) Descendants() ([]types.ObjectID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.descendants, o.hasDesc
}

// SetDescendants caches the descendant list on the handle.
func (o *Object) SetDescendants(ids []types.ObjectID) {
	if ids == nil {
		ids = []types.ObjectID{}
	}
	o.mu.Lock()
	o.descendants = ids
	o.hasDesc = true
	o.mu.Unlock()
}

// Cache maps object ids to their canonical handle.
type Cache struct {
	load Loader
	save Saver

	mu      sync.Mutex
	objects map[types.ObjectID]*Object
}

// New returns an empty cache. load is bound to partially hydrated records;
// save is bound to fully hydrated ones.
func New(load Loader, save Saver) *Cache {
	return &Cache{
		load:    load,
		save:    save,
		objects: make(map[types.ObjectID]*Object),
	}
}

// Merge folds rec into the cache and returns the canonical handle for rec.ID.
//
// The first sighting stores rec as is. A later full record overwrites the
// metadata fields of the existing handle in place. A later partial record
// leaves the fields alone. The same handle is returned every time.
func (c *Cache) Merge(rec types.ObjectData, full bool) *Object {
	c.mu.Lock()
	o, ok := c.objects[rec.ID]
	if !ok {
		o = &Object{id: rec.ID}
		c.objects[rec.ID] = o
	}
	// lock order: cache then object
	o.mu.Lock()
	c.mu.Unlock()
	defer o.mu.Unlock()

	switch {
	case !ok:
		o.data = rec
		o.full = full
		if len(rec.Descendants) > 0 {
			o.descendants = rec.Descendants
			o.hasDesc = true
		}
	case full:
		o.data.Name = rec.Name
		o.data.Path = rec.Path
		o.data.Properties = rec.Properties
		o.data.URL = rec.URL
		o.data.Description = rec.Description
		o.data.Type = rec.Type
		o.data.Bounds = rec.Bounds
		o.full = true
	}
	if o.full {
		o.loader = nil
		o.saver = c.save
	} else if o.loader == nil {
		o.loader = c.load
	}
	return o
}

// Get returns the handle for id if it has been seen.
func (c *Cache) Get(id types.ObjectID) (*Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[id]
	return o, ok
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}
