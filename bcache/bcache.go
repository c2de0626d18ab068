// Package bcache is the buffered block cache: a fixed-size table of pinned
// disk blocks with reference counting and per-buffer sleep locks, standing
// in for the kernel's bread/brelse/bwrite layer that spec.md treats as an
// external collaborator. It is structured exactly like the inode cache it
// sits below: a spin-lock protects slot identity (blockno/ref), a sleep
// lock per slot protects contents, and eviction only ever touches an
// unreferenced slot.
package bcache

import (
	"sync"

	"github.com/tchajed/xv6fs/buf"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/internal/util"
)

// NBUF is the number of block buffers kept in memory at once.
const NBUF = 64

// Cache is a fixed-size table of cached disk blocks.
type Cache struct {
	mu    sync.Mutex // spin-lock: guards slot identity/ref/lastUse
	d     disk.Disk
	slots []*buf.Buf
	clock uint64
}

// New creates a cache of nbuf slots backed by d.
func New(d disk.Disk, nbuf int) *Cache {
	slots := make([]*buf.Buf, nbuf)
	for i := range slots {
		slots[i] = buf.New()
	}
	return &Cache{d: d, slots: slots}
}

// Get returns the buffer for blockno, pinned and content-locked (bread).
// The caller must Release it when done.
func (c *Cache) Get(blockno uint64) *buf.Buf {
	c.mu.Lock()
	var victim *buf.Buf
	for _, b := range c.slots {
		if b.Valid && b.Blockno == blockno {
			b.IncRef()
			c.mu.Unlock()
			b.Lock()
			return b
		}
		if b.Ref() == 0 && (victim == nil || b.LastUse() < victim.LastUse()) {
			victim = b
		}
	}
	if victim == nil {
		c.mu.Unlock()
		panic("bcache: no free buffer")
	}
	victim.Blockno = blockno
	victim.Valid = false
	victim.IncRef()
	c.mu.Unlock()

	victim.Lock()
	if !victim.Valid {
		if err := c.d.ReadAt(blockno, victim.Data); err != nil {
			panic(err)
		}
		victim.Valid = true
		victim.ClearDirty()
	}
	return victim
}

// Release unlocks and unpins b (brelse).
func (c *Cache) Release(b *buf.Buf) {
	b.Unlock()
	c.mu.Lock()
	c.clock++
	b.Touch(c.clock)
	b.DecRef()
	c.mu.Unlock()
}

// Pin increments b's reference count so it cannot be chosen as an
// eviction victim, independent of any content lock held on it (bpin in
// xv6's bio.c). Used by the log to keep a dirtied-but-uncommitted block
// resident after the transaction that dirtied it has released it, so a
// later Get for some other block can never repurpose its slot before
// commit installs it.
func (c *Cache) Pin(b *buf.Buf) {
	c.mu.Lock()
	b.IncRef()
	c.mu.Unlock()
}

// Unpin reverses a Pin (bunpin).
func (c *Cache) Unpin(b *buf.Buf) {
	c.mu.Lock()
	b.DecRef()
	c.mu.Unlock()
}

// WriteThrough writes b's contents straight to its home location,
// bypassing the log (bwrite). Used only outside transactions, e.g. by
// mkfs and by the log's own recovery and install steps.
func (c *Cache) WriteThrough(b *buf.Buf) {
	util.DPrintf(5, "bcache: write-through block %d\n", b.Blockno)
	if err := c.d.WriteAt(b.Blockno, b.Data); err != nil {
		panic(err)
	}
	b.ClearDirty()
}

// Disk exposes the underlying device, for components (the log's recovery
// and install code) that must read or write blocks outside the cache.
func (c *Cache) Disk() disk.Disk { return c.d }
