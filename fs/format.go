package fs

import (
	"fmt"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/dirent"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"

	"github.com/tchajed/xv6fs/inode"
)

// Config describes the geometry cmd/mkfs lays down: how many blocks the
// device has in total, how many inodes to reserve room for, and how
// many data blocks the log needs.
type Config struct {
	Size    uint64 // total blocks on the device
	Ninodes uint64
	Nlog    uint64
}

// Format writes a fresh superblock, a cleared bitmap and inode region,
// and a root directory onto d, then returns the resulting layout. It
// does not mount a Proc or leave d open for use — callers pass the same
// d to Mount afterward.
func Format(d disk.Disk, cfg Config) super.Super {
	inodeBlocks := (cfg.Ninodes + super.IPB - 1) / super.IPB

	const fixedBlocks = 2 // boot + super
	logBlocks := cfg.Nlog + 1
	reserved := fixedBlocks + logBlocks + inodeBlocks
	if reserved >= cfg.Size {
		panic(fmt.Sprintf("fs: format: device too small: need > %d blocks, have %d", reserved, cfg.Size))
	}
	avail := cfg.Size - reserved

	bitmapBlocks := (avail + common.BSIZE*8 - 1) / (common.BSIZE * 8)
	dataBlocks := avail - bitmapBlocks

	sb := super.Super{
		Size:       cfg.Size,
		Nblocks:    dataBlocks,
		Ninodes:    cfg.Ninodes,
		Nlog:       cfg.Nlog,
		LogStart:   fixedBlocks,
		InodeStart: fixedBlocks + logBlocks,
		BmapStart:  fixedBlocks + logBlocks + inodeBlocks,
	}
	sb.DataStart = sb.BmapStart + bitmapBlocks

	bc := bcache.New(d, bcache.NBUF)

	zeroRegion(bc, 0, cfg.Size) // boot, super (rewritten below), log, inodes, bitmap, data
	super.Write(bc, sb)

	log := wal.Open(bc, sb.LogStart, sb.Nlog)
	cache := inode.New(bc, log, sb)

	log.BeginOp()
	rootInum := cache.Ialloc(common.T_DIR)
	log.EndOp()
	if rootInum != common.ROOTINO {
		panic(fmt.Sprintf("fs: format: root inode got number %d, want %d", rootInum, common.ROOTINO))
	}

	root := cache.Iget(rootInum)
	cache.Ilock(root)
	log.BeginOp()
	root.Nlink = 1
	cache.Iupdate(root)
	if err := dirent.Dirlink(cache, root, ".", rootInum); err != nil {
		panic("fs: format: dirlink '.' on fresh root: " + err.Error())
	}
	if err := dirent.Dirlink(cache, root, "..", rootInum); err != nil {
		panic("fs: format: dirlink '..' on fresh root: " + err.Error())
	}
	log.EndOp()
	cache.Iunlock(root)
	cache.Iput(root)

	return sb
}

func zeroRegion(bc *bcache.Cache, start, n uint64) {
	for i := uint64(0); i < n; i++ {
		b := bc.Get(start + i)
		for j := range b.Data {
			b.Data[j] = 0
		}
		bc.WriteThrough(b)
		bc.Release(b)
	}
}
