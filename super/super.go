// Package super reads and describes the on-disk superblock: the single
// block that tells a freshly mounted file system where every other region
// of the disk begins (spec.md §3, §4.A).
package super

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
)

// FSMagic identifies a disk image formatted by this file system's mkfs.
const FSMagic = 0x10203040

// SuperBlockNum is the fixed block holding the superblock. Block 0 is left
// for a boot sector, matching the layout mkfs lays down.
const SuperBlockNum = 1

// INODESZ is the packed size in bytes of one on-disk dinode record (5
// uint64 header fields + NDIRECT+2 address words + a MAXPATH-byte inline
// symlink target, rounded up). Kept here rather than in package inode to
// avoid a cycle: super computes IBlock without needing the rest of the
// inode package.
const INODESZ = 320

// Super describes the fixed layout of a mounted disk.
type Super struct {
	Size       uint64 // total blocks on disk, including boot/super/log/bitmap/inodes
	Nblocks    uint64 // number of data blocks
	Ninodes    uint64 // number of inodes
	Nlog       uint64 // number of log data blocks (excludes the log header)
	LogStart   uint64 // first block of the log header
	InodeStart uint64 // first block of the inode table
	BmapStart  uint64 // first block of the free-block bitmap
	DataStart  uint64 // first block available to the allocator
}

// IPB is the number of dinode records packed into one inode-region block.
const IPB = common.BSIZE / INODESZ

// Read loads and validates the superblock from disk.
func Read(bc *bcache.Cache) Super {
	b := bc.Get(SuperBlockNum)
	defer bc.Release(b)

	dec := marshal.NewDec(b.Data)
	magic := dec.GetInt()
	if magic != FSMagic {
		panic(fmt.Sprintf("super: bad magic %#x, disk was not formatted by mkfs", magic))
	}
	return Super{
		Size:       dec.GetInt(),
		Nblocks:    dec.GetInt(),
		Ninodes:    dec.GetInt(),
		Nlog:       dec.GetInt(),
		LogStart:   dec.GetInt(),
		InodeStart: dec.GetInt(),
		BmapStart:  dec.GetInt(),
		DataStart:  dec.GetInt(),
	}
}

// Write persists sb as the superblock. Used only by mkfs, via a direct
// write-through since there is no file system (and no log) yet.
func Write(bc *bcache.Cache, sb Super) {
	enc := marshal.NewEnc(1024)
	enc.PutInt(FSMagic)
	enc.PutInt(sb.Size)
	enc.PutInt(sb.Nblocks)
	enc.PutInt(sb.Ninodes)
	enc.PutInt(sb.Nlog)
	enc.PutInt(sb.LogStart)
	enc.PutInt(sb.InodeStart)
	enc.PutInt(sb.BmapStart)
	enc.PutInt(sb.DataStart)

	b := bc.Get(SuperBlockNum)
	copy(b.Data, enc.Finish())
	bc.WriteThrough(b)
	bc.Release(b)
}

// IBlock returns the block of the inode table holding inode inum.
func (sb Super) IBlock(inum uint64) uint64 {
	return sb.InodeStart + inum/IPB
}

// IOff returns the byte offset within IBlock(inum) of inode inum's record.
func (sb Super) IOff(inum uint64) uint64 {
	return (inum % IPB) * INODESZ
}

// BBlock returns the bitmap block that holds the free/used bit for data
// block bn.
func (sb Super) BBlock(bn uint64) uint64 {
	return sb.BmapStart + bn/(common.BSIZE*8)
}
