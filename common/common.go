// Package common holds the on-disk layout constants shared by the
// allocator, inode, directory and path packages: block geometry, inode
// type tags and the maximum file size reachable through the block map
// (spec.md §3, §6).
package common

import (
	"errors"

	"github.com/tchajed/xv6fs/disk"
)

// Error values returned for the non-fatal error kinds spec.md §7
// classifies as argument errors, lookup failures, name collisions and
// cycle/depth limits. Structural inconsistencies (resource exhaustion,
// corruption) panic instead; see the packages that detect them.
var (
	ErrNotExist    = errors.New("xv6fs: no such file or directory")
	ErrExist       = errors.New("xv6fs: file already exists")
	ErrInvalid     = errors.New("xv6fs: invalid argument")
	ErrIsDir       = errors.New("xv6fs: is a directory")
	ErrNotDir      = errors.New("xv6fs: not a directory")
	ErrSymlinkLoop = errors.New("xv6fs: too many levels of symbolic links")
	ErrNotEmpty    = errors.New("xv6fs: directory not empty")
)

// BSIZE is the disk block size in bytes.
const BSIZE = disk.BlockSize

// NDIRECT is the number of direct block pointers held in a dinode.
const NDIRECT = 12

// NINDIRECT is the number of block pointers that fit in one indirect
// block: BSIZE/4 since each pointer is stored as a uint32, matching
// xv6's on-disk format.
const NINDIRECT = BSIZE / 4

// MAXFILE is the number of logical blocks addressable through an inode's
// direct, singly-indirect and doubly-indirect pointers; valid block
// indices run from 0 to MAXFILE-1.
const MAXFILE = NDIRECT + NINDIRECT + NINDIRECT*NINDIRECT

// DIRSIZ is the maximum number of significant bytes in a directory entry
// name; longer names are compared only on their first DIRSIZ bytes.
const DIRSIZ = 14

// MAXPATH is the longest path (and symlink target) this file system will
// store, including the trailing NUL when the string is shorter than it.
const MAXPATH = 144

// Inode type tags. T_FREE (zero) means the on-disk slot holds no inode.
type Itype uint64

const (
	T_FREE   Itype = 0
	T_FILE   Itype = 1
	T_DIR    Itype = 2
	T_DEVICE Itype = 3
	T_SYMLINK Itype = 4
)

// Inum is an on-disk inode number. Inum 0 never names a real inode;
// ROOTINO is the root directory's inode number.
type Inum = uint64

const (
	NULLINUM Inum = 0
	ROOTINO  Inum = 1
)

// Bnum is a disk block number. NULLBNUM marks an unallocated pointer.
type Bnum = uint64

const NULLBNUM Bnum = 0

// Open flags understood by fs.Open, modeled on xv6's fcntl.h subset.
const (
	O_RDONLY   = 0x000
	O_WRONLY   = 0x001
	O_RDWR     = 0x002
	O_CREATE   = 0x200
	O_TRUNC    = 0x400
	O_NOFOLLOW = 0x800
)

// MaxSymlinkDepth bounds symlink-chain following in fs.Open (spec.md
// §4.I, §7): the tenth hop must still be a symlink to fail as a cycle.
const MaxSymlinkDepth = 10
