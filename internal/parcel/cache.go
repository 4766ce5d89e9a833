// Package parcel holds the process-wide parcel cache. The cache is loaded once
// per data-load session and is mutated afterwards only by confirmed zoning
// updates.
package parcel

import (
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// Reader is the read-only view of the cache used by the selection store.
type Reader interface {
	Get(id model.ParcelID) (model.Parcel, bool)
	Contains(id model.ParcelID) bool
}

// Entry pairs a parcel with its parsed boundary. Geometry is nil when the
// serialized boundary could not be parsed.
type Entry struct {
	Parcel   model.Parcel
	Geometry geom.T
}

// Cache stores the loaded parcels in service order.
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[model.ParcelID]int
	vocab   zoning.Vocabulary
	session uint64
	version uint64
}

// NewCache creates an empty cache. Session 0 means nothing has been loaded.
func NewCache() *Cache {
	return &Cache{index: make(map[model.ParcelID]int)}
}

// Load replaces the cache contents and starts a new data-load session.
// Parcels whose geometry fails to parse are kept but carry no geometry.
func (c *Cache) Load(parcels []model.Parcel, vocab zoning.Vocabulary) uint64 {
	entries := make([]Entry, 0, len(parcels))
	index := make(map[model.ParcelID]int, len(parcels))
	for _, p := range parcels {
		if _, dup := index[p.ID]; dup {
			zap.L().Warn("parcel: duplicate parcel id in load", zap.Stringer("id", p.ID))
			continue
		}
		g, err := ParseGeometry(p.Geometry)
		if err != nil {
			zap.L().Warn("parcel: skipping unparseable geometry",
				zap.Stringer("id", p.ID), zap.Error(err))
			g = nil
		}
		index[p.ID] = len(entries)
		entries = append(entries, Entry{Parcel: p, Geometry: g})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.index = index
	c.vocab = vocab
	c.session++
	c.version++
	return c.session
}

// Session returns the current data-load session number.
func (c *Cache) Session() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Version increments on every mutation of the cache.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Vocabulary returns the zoning vocabulary loaded with the parcels.
func (c *Cache) Vocabulary() zoning.Vocabulary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vocab
}

// Len returns the number of cached parcels.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get implements Reader.
func (c *Cache) Get(id model.ParcelID) (model.Parcel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return model.Parcel{}, false
	}
	return c.entries[i].Parcel, true
}

// Contains implements Reader.
func (c *Cache) Contains(id model.ParcelID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[id]
	return ok
}

// Parcels returns a copy of all cached parcels in load order.
func (c *Cache) Parcels() []model.Parcel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Parcel, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Parcel
	}
	return out
}

// Entries returns a copy of all entries in load order.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ApplyZoning re-zones the given parcels and returns how many were patched.
// Unknown ids are ignored.
func (c *Cache) ApplyZoning(ids []model.ParcelID, zoningType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, id := range ids {
		i, ok := c.index[id]
		if !ok {
			continue
		}
		c.entries[i].Parcel = c.entries[i].Parcel.WithZoning(zoningType)
		n++
	}
	if n > 0 {
		c.version++
	}
	return n
}

// Remove drops parcels from the cache within the current session.
func (c *Cache) Remove(ids ...model.ParcelID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[model.ParcelID]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.index[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}

	kept := c.entries[:0]
	index := make(map[model.ParcelID]int, len(c.entries)-len(drop))
	for _, e := range c.entries {
		if drop[e.Parcel.ID] {
			continue
		}
		index[e.Parcel.ID] = len(kept)
		kept = append(kept, e)
	}
	c.entries = kept
	c.index = index
	c.version++
	return len(drop)
}
