package inode

import (
	"errors"

	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/internal/util"
)

// ErrInvalidRange is returned by Readi/Writei when the requested byte
// range is negative-length (off+n overflows), starts past EOF, or would
// grow a file past MAXFILE*BSIZE on a write (spec.md §4.F, §7).
var ErrInvalidRange = errors.New("inode: invalid offset/length")

// Readi copies up to n bytes of ip's content starting at off into dst,
// clamped to ip's current size. Caller holds ip's content lock. Returns
// the number of bytes actually copied.
func (c *Cache) Readi(ip *Inode, dst []byte, off uint64, n uint64) (uint64, error) {
	if off > ip.Size {
		return 0, ErrInvalidRange
	}
	if off+n < off {
		return 0, ErrInvalidRange
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}

	var total uint64
	for total < n {
		bn := (off + total) / common.BSIZE
		boff := (off + total) % common.BSIZE
		blkno := c.bmap(ip, bn)
		m := util.Min(common.BSIZE-boff, n-total)

		b := c.bc.Get(blkno)
		copy(dst[total:total+m], b.Data[boff:boff+m])
		c.bc.Release(b)

		total += m
	}
	return total, nil
}

// Writei writes n bytes from src into ip's content starting at off,
// growing the file (and allocating blocks via bmap) as needed. Caller
// holds ip's content lock and is inside a log transaction. Rejects a
// write that would start past EOF by more than zero (off > Size) or that
// would exceed MAXFILE*BSIZE; writei never truncates a write to fit.
func (c *Cache) Writei(ip *Inode, src []byte, off uint64, n uint64) (uint64, error) {
	if off > ip.Size {
		return 0, ErrInvalidRange
	}
	if off+n < off {
		return 0, ErrInvalidRange
	}
	if off+n > common.MAXFILE*common.BSIZE {
		return 0, ErrInvalidRange
	}

	var total uint64
	for total < n {
		bn := (off + total) / common.BSIZE
		boff := (off + total) % common.BSIZE
		blkno := c.bmap(ip, bn)
		m := util.Min(common.BSIZE-boff, n-total)

		b := c.bc.Get(blkno)
		copy(b.Data[boff:boff+m], src[total:total+m])
		c.log.LogWrite(b)
		c.bc.Release(b)

		total += m
	}
	if total > 0 {
		if off+total > ip.Size {
			ip.Size = off + total
		}
		c.Iupdate(ip)
	}
	return total, nil
}
