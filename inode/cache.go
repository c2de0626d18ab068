// Package inode implements the in-memory inode cache, the on-disk dinode
// codec, the block map and truncate, and byte-range file I/O (spec.md
// §3, §4.C–§4.G). It sits directly on the block cache and log: every
// mutating entry point here assumes the caller already called
// wal.Log.BeginOp.
package inode

import (
	"fmt"
	"sync"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/internal/util"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

// NINODE is the number of slots in the in-memory inode cache. The table
// is scanned linearly (spec.md §9): fine at this size, a hash index would
// be needed at kernel scale.
const NINODE = 50

// Inode is one cache slot: identity fields (Inum, ref) guarded by the
// Cache's spin-lock, and the valid bit and on-disk content guarded by the
// slot's own sleep-lock (content). The two are deliberately different
// locks — see spec.md §9, "Two-level locking of inodes".
type Inode struct {
	content sync.Mutex // sleep-lock: guards valid and the dinode fields, plus on-disk I/O

	Inum  common.Inum
	ref   int  // in-memory reference count; guarded by Cache.mu
	valid bool // on-disk fields below match the disk; guarded by content lock

	dinode
}

// Cache is the fixed-size table of cached inodes for one mounted device.
type Cache struct {
	mu    sync.Mutex // spin-lock: guards ref/Inum of every slot
	slots [NINODE]*Inode

	bc  *bcache.Cache
	log *wal.Log
	sb  super.Super
}

// New creates an inode cache over bc/log for the file system described by
// sb. No disk I/O happens until a caller locks an inode.
func New(bc *bcache.Cache, log *wal.Log, sb super.Super) *Cache {
	c := &Cache{bc: bc, log: log, sb: sb}
	for i := range c.slots {
		c.slots[i] = &Inode{}
	}
	return c
}

// Log returns the write-ahead log backing this cache, for callers (mkfs,
// fsck, the fs package's transaction wrappers) that need to bracket their
// own operations with BeginOp/EndOp.
func (c *Cache) Log() *wal.Log { return c.log }

// Super returns the on-disk layout this cache was opened with.
func (c *Cache) Super() super.Super { return c.sb }

// Bcache returns the block cache backing this inode cache.
func (c *Cache) Bcache() *bcache.Cache { return c.bc }

// Iget returns a cache slot referencing inum, incrementing its
// reference count. It does no disk I/O; call Ilock to read the inode's
// on-disk contents. Panics if the cache has no free slot (spec.md §7).
func (c *Cache) Iget(inum common.Inum) *Inode {
	c.mu.Lock()
	defer c.mu.Unlock()

	var free *Inode
	for _, ip := range c.slots {
		if ip.ref > 0 && ip.Inum == inum {
			ip.ref++
			return ip
		}
		if free == nil && ip.ref == 0 {
			free = ip
		}
	}
	if free == nil {
		panic("inode: iget: no free cache slot")
	}
	free.Inum = inum
	free.ref = 1
	free.valid = false
	return free
}

// Idup increments ip's reference count and returns it.
func (c *Cache) Idup(ip *Inode) *Inode {
	c.mu.Lock()
	ip.ref++
	c.mu.Unlock()
	return ip
}

// Ilock acquires ip's content lock, reading the on-disk inode on first
// use. Panics if the decoded type is free: that means some caller handed
// out an inum that was never allocated, or raced a concurrent free
// without holding a reference (spec.md §7, "Corruption").
func (c *Cache) Ilock(ip *Inode) {
	ip.content.Lock()
	if !ip.valid {
		b := c.bc.Get(c.sb.IBlock(ip.Inum))
		off := c.sb.IOff(ip.Inum)
		d := decodeDinode(b.Data[off : off+super.INODESZ])
		c.bc.Release(b)
		if d.Type == common.T_FREE {
			ip.content.Unlock()
			panic(fmt.Sprintf("inode: ilock: inode %d has no type", ip.Inum))
		}
		ip.dinode = d
		ip.valid = true
		util.DPrintf(5, "inode: ilock %d -> %+v\n", ip.Inum, ip.dinode)
	}
}

// Iunlock releases ip's content lock. Panics if ip has no outstanding
// reference (spec.md §7).
func (c *Cache) Iunlock(ip *Inode) {
	c.mu.Lock()
	if ip.ref < 1 {
		c.mu.Unlock()
		panic("inode: iunlock: no reference held")
	}
	c.mu.Unlock()
	ip.content.Unlock()
}

// Iupdate writes ip's in-memory fields back to its on-disk block through
// the log. Caller holds ip's content lock and is inside a transaction.
func (c *Cache) Iupdate(ip *Inode) {
	rec := ip.dinode.encode()
	b := c.bc.Get(c.sb.IBlock(ip.Inum))
	off := c.sb.IOff(ip.Inum)
	copy(b.Data[off:off+super.INODESZ], rec)
	c.log.LogWrite(b)
	c.bc.Release(b)
	util.DPrintf(5, "inode: iupdate %d -> %+v\n", ip.Inum, ip.dinode)
}

// Iput drops a reference to ip. If that was the last reference to a
// unlinked inode, it frees the inode's blocks and its on-disk slot first.
// Must be called inside a log transaction (spec.md §4.C, §9).
func (c *Cache) Iput(ip *Inode) {
	c.mu.Lock()
	if ip.ref == 1 && ip.valid && ip.Nlink == 0 {
		// Acquiring the content lock here cannot block: ref == 1 means no
		// other goroutine can be holding or waiting for it.
		ip.content.Lock()
		c.mu.Unlock()

		c.itrunc(ip)
		ip.Type = common.T_FREE
		c.Iupdate(ip)
		ip.valid = false

		ip.content.Unlock()
		c.mu.Lock()
	}
	ip.ref--
	c.mu.Unlock()
}

// IunlockPut is the common Iunlock-then-Iput pairing used throughout the
// directory and path-resolution code.
func (c *Cache) IunlockPut(ip *Inode) {
	c.Iunlock(ip)
	c.Iput(ip)
}

// Ialloc finds the first free on-disk dinode, marks it with type typ, and
// returns its inode number. Panics if the device has no free inode
// (spec.md §7).
func (c *Cache) Ialloc(typ common.Itype) common.Inum {
	for inum := common.Inum(1); inum < c.sb.Ninodes; inum++ {
		blk := c.sb.IBlock(inum)
		off := c.sb.IOff(inum)
		b := c.bc.Get(blk)
		rec := b.Data[off : off+super.INODESZ]
		d := decodeDinode(rec)
		if d.Type == common.T_FREE {
			var nd dinode
			nd.Type = typ
			copy(rec, nd.encode())
			c.log.LogWrite(b)
			c.bc.Release(b)
			util.DPrintf(1, "inode: ialloc %d type %d\n", inum, typ)
			return inum
		}
		c.bc.Release(b)
	}
	panic("inode: ialloc: no free inodes")
}

// DiskType reads inum's on-disk type directly, bypassing the cache. Used
// by tests and cmd/fsck to observe the on-disk state Iput leaves behind
// without racing the cache's own notion of validity.
func (c *Cache) DiskType(inum common.Inum) common.Itype {
	b := c.bc.Get(c.sb.IBlock(inum))
	defer c.bc.Release(b)
	off := c.sb.IOff(inum)
	return decodeDinode(b.Data[off : off+super.INODESZ]).Type
}

// Stat is the subset of inode metadata exposed to callers outside the
// package (the fs.Open/fstat surface).
type Stat struct {
	Inum  common.Inum
	Type  common.Itype
	Nlink uint64
	Size  uint64
	Major uint64
	Minor uint64
}

// Stati snapshots ip's metadata. Caller holds ip's content lock.
func (c *Cache) Stati(ip *Inode) Stat {
	return Stat{
		Inum:  ip.Inum,
		Type:  ip.Type,
		Nlink: ip.Nlink,
		Size:  ip.Size,
		Major: ip.Major,
		Minor: ip.Minor,
	}
}
