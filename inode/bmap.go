package inode

import (
	"encoding/binary"

	"github.com/tchajed/xv6fs/alloc"
	"github.com/tchajed/xv6fs/common"
)

func readPtr(blk []byte, idx uint64) common.Bnum {
	off := idx * 4
	return common.Bnum(binary.LittleEndian.Uint32(blk[off : off+4]))
}

func writePtr(blk []byte, idx uint64, val common.Bnum) {
	off := idx * 4
	binary.LittleEndian.PutUint32(blk[off:off+4], uint32(val))
}

// readOrAllocPtr returns the idx-th block pointer stored in block blkno,
// allocating and logging a fresh block if that entry is empty.
func (c *Cache) readOrAllocPtr(blkno common.Bnum, idx uint64) common.Bnum {
	b := c.bc.Get(blkno)
	defer c.bc.Release(b)
	val := readPtr(b.Data, idx)
	if val == common.NULLBNUM {
		val = alloc.Balloc(c.bc, c.log, c.sb)
		writePtr(b.Data, idx, val)
		c.log.LogWrite(b)
	}
	return val
}

// bmap translates logical block index bn within ip's content into a disk
// block number, lazily allocating direct, singly-indirect and
// doubly-indirect blocks as needed (spec.md §4.D). The caller is
// responsible for an eventual Iupdate — allocating ip.Addrs[bn] dirties
// the inode in memory even when bmap itself doesn't write it back.
func (c *Cache) bmap(ip *Inode, bn uint64) common.Bnum {
	if bn >= common.MAXFILE {
		panic("inode: bmap: block index out of range")
	}

	if bn < common.NDIRECT {
		if ip.Addrs[bn] == common.NULLBNUM {
			ip.Addrs[bn] = alloc.Balloc(c.bc, c.log, c.sb)
		}
		return ip.Addrs[bn]
	}
	bn -= common.NDIRECT

	if bn < common.NINDIRECT {
		if ip.Addrs[common.NDIRECT] == common.NULLBNUM {
			ip.Addrs[common.NDIRECT] = alloc.Balloc(c.bc, c.log, c.sb)
		}
		return c.readOrAllocPtr(ip.Addrs[common.NDIRECT], bn)
	}
	bn -= common.NINDIRECT

	outer := bn / common.NINDIRECT
	inner := bn % common.NINDIRECT
	if ip.Addrs[common.NDIRECT+1] == common.NULLBNUM {
		ip.Addrs[common.NDIRECT+1] = alloc.Balloc(c.bc, c.log, c.sb)
	}
	mid := c.readOrAllocPtr(ip.Addrs[common.NDIRECT+1], outer)
	return c.readOrAllocPtr(mid, inner)
}

// freeIndirectBlock frees every non-empty leaf pointer stored in the
// indirect block blkno, then frees blkno itself.
func (c *Cache) freeIndirectBlock(blkno common.Bnum) {
	for _, p := range c.indirectLeaves(blkno) {
		alloc.Bfree(c.bc, c.log, c.sb, p)
	}
	alloc.Bfree(c.bc, c.log, c.sb, blkno)
}

// freeDoubleIndirectBlock frees, for each second-level indirect block
// pointed to by the top-level block blkno, every leaf it holds and then
// the second-level block itself; blkno is freed last (spec.md §4.E).
func (c *Cache) freeDoubleIndirectBlock(blkno common.Bnum) {
	b := c.bc.Get(blkno)
	mids := make([]common.Bnum, common.NINDIRECT)
	for i := range mids {
		mids[i] = readPtr(b.Data, uint64(i))
	}
	c.bc.Release(b)
	for _, mid := range mids {
		if mid != common.NULLBNUM {
			c.freeIndirectBlock(mid)
		}
	}
	alloc.Bfree(c.bc, c.log, c.sb, blkno)
}

// itrunc frees every block reachable from ip and resets its size to
// zero (spec.md §4.E). Caller holds ip's content lock and is inside a
// transaction.
func (c *Cache) itrunc(ip *Inode) {
	for i := 0; i < common.NDIRECT; i++ {
		if ip.Addrs[i] != common.NULLBNUM {
			alloc.Bfree(c.bc, c.log, c.sb, ip.Addrs[i])
			ip.Addrs[i] = common.NULLBNUM
		}
	}
	if ip.Addrs[common.NDIRECT] != common.NULLBNUM {
		c.freeIndirectBlock(ip.Addrs[common.NDIRECT])
		ip.Addrs[common.NDIRECT] = common.NULLBNUM
	}
	if ip.Addrs[common.NDIRECT+1] != common.NULLBNUM {
		c.freeDoubleIndirectBlock(ip.Addrs[common.NDIRECT+1])
		ip.Addrs[common.NDIRECT+1] = common.NULLBNUM
	}
	ip.Size = 0
	c.Iupdate(ip)
}

// Itrunc is the exported entry point for fs.Open(O_TRUNC). Unlink's final
// free goes through Iput, which calls itrunc directly.
func (c *Cache) Itrunc(ip *Inode) { c.itrunc(ip) }

// ReachableBlocks returns every block number ip pins: its direct
// pointers, its singly-indirect block and the leaves it holds, and its
// doubly-indirect block together with every second-level block and leaf
// reachable through it. Used by cmd/fsck to recompute the bitmap
// independently of the allocator. Caller holds ip's content lock.
func (c *Cache) ReachableBlocks(ip *Inode) []common.Bnum {
	var out []common.Bnum

	for i := 0; i < common.NDIRECT; i++ {
		if ip.Addrs[i] != common.NULLBNUM {
			out = append(out, ip.Addrs[i])
		}
	}

	if ind := ip.Addrs[common.NDIRECT]; ind != common.NULLBNUM {
		out = append(out, ind)
		out = append(out, c.indirectLeaves(ind)...)
	}

	if outer := ip.Addrs[common.NDIRECT+1]; outer != common.NULLBNUM {
		out = append(out, outer)
		b := c.bc.Get(outer)
		mids := make([]common.Bnum, common.NINDIRECT)
		for i := range mids {
			mids[i] = readPtr(b.Data, uint64(i))
		}
		c.bc.Release(b)
		for _, mid := range mids {
			if mid == common.NULLBNUM {
				continue
			}
			out = append(out, mid)
			out = append(out, c.indirectLeaves(mid)...)
		}
	}

	return out
}

func (c *Cache) indirectLeaves(blkno common.Bnum) []common.Bnum {
	b := c.bc.Get(blkno)
	defer c.bc.Release(b)
	var leaves []common.Bnum
	for i := uint64(0); i < common.NINDIRECT; i++ {
		if p := readPtr(b.Data, i); p != common.NULLBNUM {
			leaves = append(leaves, p)
		}
	}
	return leaves
}
