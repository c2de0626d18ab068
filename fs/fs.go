// Package fs bundles the allocator, inode cache, directory operations and
// path resolver into the mountable file system and its syscall-level
// operations (spec.md §4.I, §4.J): create, link, unlink, mkdir, symlink,
// open and chdir, each wrapped in a single log transaction.
package fs

import (
	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/inode"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

// FS is one mounted file system: the block cache, the log, the inode
// cache built on both, and a long-held reference to the root inode.
type FS struct {
	bc    *bcache.Cache
	log   *wal.Log
	cache *inode.Cache
	sb    super.Super
	root  *inode.Inode
}

// Mount reads the superblock from d, opens (and, if needed, recovers)
// the log, and returns a ready-to-use file system (spec.md §4.A). d must
// already have been formatted by cmd/mkfs.
func Mount(d disk.Disk) *FS {
	bc := bcache.New(d, bcache.NBUF)
	sb := super.Read(bc)
	log := wal.Open(bc, sb.LogStart, sb.Nlog)
	cache := inode.New(bc, log, sb)
	root := cache.Iget(common.ROOTINO)
	return &FS{bc: bc, log: log, cache: cache, sb: sb, root: root}
}

// Unmount drops the file system's hold on the root inode and closes the
// underlying device.
func (fs *FS) Unmount() error {
	fs.cache.Iput(fs.root)
	return fs.bc.Disk().Close()
}

// Cache exposes the inode cache, for cmd/fsck's consistency checks.
func (fs *FS) Cache() *inode.Cache { return fs.cache }

// Super returns the mounted disk's layout.
func (fs *FS) Super() super.Super { return fs.sb }

// Proc is a calling context's current-directory state — the one piece of
// per-process state spec.md §1 calls out as external (a real kernel
// looks this up via its process table); tests get one from NewProc
// instead of through a process abstraction.
type Proc struct {
	Cwd *inode.Inode
}

// NewProc returns a Proc rooted at fs's root directory.
func (fs *FS) NewProc() *Proc {
	return &Proc{Cwd: fs.cache.Idup(fs.root)}
}

// CloseProc releases p's current-directory reference. Call before the
// Proc goes out of scope. It opens its own transaction around the Iput,
// since Cwd's last iput may free blocks if nothing else holds it (though
// in practice the root keeps it alive).
func (fs *FS) CloseProc(p *Proc) {
	fs.log.BeginOp()
	fs.cache.Iput(p.Cwd)
	fs.log.EndOp()
}
