// Package luminosity implements the convolution cache that
// grid.Grid.Convolve uses to avoid recomputing a parton-luminosity
// value for a (pid, xIndex, scaleIndex) triple it has already seen
// while summing over channels and orders.
//
// The key layout and linear-probing table are lifted from the
// teacher's fusion/kmer_index.go: hash the key with farm.Hash64WithSeed,
// split the hash into a shard selector and an in-shard probe sequence,
// and fall back to a plain miss once maxCollisions slots have been
// tried. This is a write-once-per-key, read-many cache, not a general
// map, so a bounded linear probe costs far less than the correctness
// overhead of resizing or eviction.
package luminosity

import (
	farm "github.com/dgryski/go-farm"
)

// nShards mirrors kmer_index.go's shard count; it keeps single-shard
// contention low without the complexity of per-shard locks, since a
// convolution's cache is only ever used from the single goroutine
// driving that convolution.
const nShards = 256

const maxCollisions = 64

// Key identifies one cached luminosity value.
type Key struct {
	PID        int32
	XIndex     int32
	ScaleIndex int32
}

func (k Key) hash() uint64 {
	// Pack the three fields into 8 bytes the same way kmer_index.go
	// reduces a Kmer to a uint64 before hashing it.
	packed := uint64(uint32(k.PID))<<40 | uint64(uint32(k.XIndex))<<20 | uint64(uint32(k.ScaleIndex))
	return farm.Hash64WithSeed(nil, packed)
}

type entry struct {
	key   Key
	value float64
	used  bool
}

// Cache is a bounded linear-probing hash table from Key to float64,
// sized for one convolution's worth of lookups.
type Cache struct {
	shards [nShards][]entry
	shift  uint32
	mask   uint64
}

// New returns a Cache sized to hold roughly capacityHint entries
// before collisions start pushing lookups toward the maxCollisions
// bound. capacityHint <= 0 yields a small default table.
func New(capacityHint int) *Cache {
	if capacityHint <= 0 {
		capacityHint = 1024
	}
	perShard := 2 * capacityHint / nShards
	if perShard < 16 {
		perShard = 16
	}
	size := 1
	for size < perShard {
		size *= 2
	}
	c := &Cache{mask: uint64(size - 1)}
	for i := range c.shards {
		c.shards[i] = make([]entry, size)
	}
	return c
}

// Get returns the cached value for key and true, or (0, false) if it
// is not present.
func (c *Cache) Get(key Key) (float64, bool) {
	h := key.hash()
	shard := &c.shards[h%nShards]
	idx := (h / nShards) & c.mask
	for i := 0; i < maxCollisions; i++ {
		slot := &(*shard)[(idx+uint64(i))&c.mask]
		if !slot.used {
			return 0, false
		}
		if slot.key == key {
			return slot.value, true
		}
	}
	return 0, false
}

// Put records value for key, overwriting any prior value. It silently
// drops the write if the bounded probe sequence is exhausted without
// finding an empty or matching slot: a cache miss is always safe,
// since Grid.Convolve recomputes on miss.
func (c *Cache) Put(key Key, value float64) {
	h := key.hash()
	shard := &c.shards[h%nShards]
	idx := (h / nShards) & c.mask
	for i := 0; i < maxCollisions; i++ {
		slot := &(*shard)[(idx+uint64(i))&c.mask]
		if !slot.used || slot.key == key {
			slot.key = key
			slot.value = value
			slot.used = true
			return
		}
	}
}

// Reset clears every entry without releasing the underlying tables,
// so a Cache can be reused across successive Convolve calls.
func (c *Cache) Reset() {
	for s := range c.shards {
		shard := c.shards[s]
		for i := range shard {
			shard[i] = entry{}
		}
	}
}
