// Package alloc is the bitmap-backed free data-block allocator (spec.md
// §4.B). One bit per data block, LSB-first within a byte; bit == 1 means
// allocated. balloc and bfree assume the caller has already opened a log
// transaction: both log the bitmap block they modify, and balloc also
// logs the zeroing of the newly allocated block so that allocation and
// zeroing commit atomically together.
package alloc

import (
	"fmt"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/internal/util"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

// Balloc scans the bitmap for the first clear bit, sets it, zeroes the
// backing data block (through the log, so the zeroing is part of the
// caller's transaction), and returns the block's number. It panics if the
// device has no free data block: resource exhaustion is fatal (spec.md §7).
func Balloc(bc *bcache.Cache, log *wal.Log, sb super.Super) common.Bnum {
	nbits := common.BSIZE * 8
	nbitblocks := util.RoundUp(sb.Nblocks, nbits)
	for bi := uint64(0); bi < nbitblocks; bi++ {
		bmapBlk := sb.BmapStart + bi
		b := bc.Get(bmapBlk)
		base := bi * nbits
		for byteOff := uint64(0); byteOff < common.BSIZE; byteOff++ {
			if base+byteOff*8 >= sb.Nblocks {
				break
			}
			byt := b.Data[byteOff]
			if byt == 0xff {
				continue
			}
			for bit := uint64(0); bit < 8; bit++ {
				bn := base + byteOff*8 + bit
				if bn >= sb.Nblocks {
					break
				}
				if byt&(1<<bit) == 0 {
					b.Data[byteOff] = byt | (1 << bit)
					log.LogWrite(b)
					bc.Release(b)

					blockno := sb.DataStart + bn
					util.DPrintf(5, "alloc: balloc %d\n", blockno)
					zeroBlock(bc, log, blockno)
					return blockno
				}
			}
		}
		bc.Release(b)
	}
	panic("alloc: out of free blocks")
}

// Bfree clears bn's bitmap bit. It panics if the bit was already clear:
// a double free is on-disk corruption (spec.md §7), not a usage error.
func Bfree(bc *bcache.Cache, log *wal.Log, sb super.Super, blockno common.Bnum) {
	bn := blockno - sb.DataStart
	bmapBlk := sb.BBlock(bn)
	byteOff := (bn % (common.BSIZE * 8)) / 8
	bit := bn % 8

	b := bc.Get(bmapBlk)
	defer bc.Release(b)
	if b.Data[byteOff]&(1<<bit) == 0 {
		panic(fmt.Sprintf("alloc: bfree: block %d already free", blockno))
	}
	b.Data[byteOff] &^= 1 << bit
	log.LogWrite(b)
}

// IsAllocated reports whether blockno's bitmap bit is set. Used by tests
// and cmd/fsck to check the allocator's invariant directly.
func IsAllocated(bc *bcache.Cache, sb super.Super, blockno common.Bnum) bool {
	bn := blockno - sb.DataStart
	bmapBlk := sb.BBlock(bn)
	byteOff := (bn % (common.BSIZE * 8)) / 8
	bit := bn % 8

	b := bc.Get(bmapBlk)
	defer bc.Release(b)
	return b.Data[byteOff]&(1<<bit) != 0
}

func zeroBlock(bc *bcache.Cache, log *wal.Log, blockno common.Bnum) {
	b := bc.Get(blockno)
	defer bc.Release(b)
	for i := range b.Data {
		b.Data[i] = 0
	}
	log.LogWrite(b)
}
