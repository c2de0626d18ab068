// Package buf defines the handle the block cache hands out for one pinned
// disk block. Its split between exported identity fields (guarded by the
// cache's spin-lock) and a per-buffer sleep-lock guarding Data mirrors the
// two-level locking the inode cache uses for the same reason: identity
// bookkeeping must never block, but examining or mutating a block's
// contents may require disk I/O.
package buf

import "github.com/tchajed/xv6fs/disk"

// Buf is one cached disk block.
type Buf struct {
	// Blockno, the reference count and lastUse are touched only while the
	// cache's spin-lock is held. Valid is cleared under that lock when a
	// slot is reassigned, and set under the content lock once the block
	// has been read from disk.
	Blockno uint64
	Valid   bool
	ref     int
	lastUse uint64

	lock  sleepLock
	Data  disk.Block
	dirty bool
}

// New allocates an unpinned, invalid buffer with a zeroed block of storage.
func New() *Buf {
	return &Buf{Data: disk.NewBlock()}
}

// Lock acquires the buffer's content lock. May block.
func (b *Buf) Lock() { b.lock.Acquire() }

// Unlock releases the buffer's content lock.
func (b *Buf) Unlock() { b.lock.Release() }

// SetDirty marks the buffer as having been modified since it was read.
func (b *Buf) SetDirty() { b.dirty = true }

// IsDirty reports whether the buffer has unflushed modifications.
func (b *Buf) IsDirty() bool { return b.dirty }

// ClearDirty marks the buffer as matching its on-disk home location.
func (b *Buf) ClearDirty() { b.dirty = false }

// Ref returns the current pin count. Caller must hold the cache's lock.
func (b *Buf) Ref() int { return b.ref }

// IncRef increments the pin count. Caller must hold the cache's lock.
func (b *Buf) IncRef() { b.ref++ }

// DecRef decrements the pin count. Caller must hold the cache's lock.
func (b *Buf) DecRef() { b.ref-- }

// LastUse returns the recency stamp used to pick an eviction victim.
func (b *Buf) LastUse() uint64 { return b.lastUse }

// Touch records clock as this buffer's most recent use.
func (b *Buf) Touch(clock uint64) { b.lastUse = clock }
