// Package dirent implements the directory entry codec and the directory
// operations built on it: dirlookup and dirlink (spec.md §3, §4.G), plus
// Dirunlink, IsEmpty and ForEach. A directory's content is nothing but a packed sequence of these
// fixed-size entries, read and written through the same inode.Cache.Readi
// /Writei used for regular files.
package dirent

import (
	"encoding/binary"

	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/inode"
)

// entrySize is the packed size of one directory entry: a 2-byte inode
// number followed by a DIRSIZ-byte name field.
const entrySize = 2 + common.DIRSIZ

type dirent struct {
	Inum common.Inum
	Name [common.DIRSIZ]byte
}

func encodeName(name string) [common.DIRSIZ]byte {
	var out [common.DIRSIZ]byte
	copy(out[:], name)
	return out
}

// nameBytes returns the significant bytes of a directory entry's name:
// up to the first NUL, or the full DIRSIZ bytes if the name filled it.
func nameBytes(raw [common.DIRSIZ]byte) []byte {
	for i, b := range raw {
		if b == 0 {
			return raw[:i]
		}
	}
	return raw[:]
}

func (d dirent) encode() []byte {
	rec := make([]byte, entrySize)
	binary.LittleEndian.PutUint16(rec[0:2], uint16(d.Inum))
	copy(rec[2:], d.Name[:])
	return rec
}

func decode(rec []byte) dirent {
	var d dirent
	d.Inum = common.Inum(binary.LittleEndian.Uint16(rec[0:2]))
	copy(d.Name[:], rec[2:2+common.DIRSIZ])
	return d
}

// namesMatch implements the fixed-length name comparison spec.md §4.G
// calls for: two names are equal iff their first DIRSIZ bytes (or their
// full length, if shorter) agree. Since the on-disk representation
// already truncates to DIRSIZ bytes, comparing the encoded name fields
// is exactly this rule.
func namesMatch(raw [common.DIRSIZ]byte, name string) bool {
	return raw == encodeName(name)
}

// Dirlookup scans dp's content for name, returning the looked-up inode
// (via Iget, not locked) and the byte offset of the matching entry. dp
// must be a directory and the caller must hold dp's content lock.
// Returns common.ErrNotExist if no entry matches.
func Dirlookup(c *inode.Cache, dp *inode.Inode, name string) (*inode.Inode, uint64, error) {
	if dp.Type != common.T_DIR {
		panic("dirent: dirlookup: not a directory")
	}

	buf := make([]byte, entrySize)
	for off := uint64(0); off < dp.Size; off += entrySize {
		n, err := c.Readi(dp, buf, off, entrySize)
		if err != nil || n != entrySize {
			panic("dirent: dirlookup: short directory read")
		}
		d := decode(buf)
		if d.Inum == common.NULLINUM {
			continue
		}
		if namesMatch(d.Name, name) {
			return c.Iget(d.Inum), off, nil
		}
	}
	return nil, 0, common.ErrNotExist
}

// IsEmpty reports whether dp has no entries besides "." and "..", the
// definition spec.md §3 gives for an empty directory. Caller holds dp's
// content lock.
func IsEmpty(c *inode.Cache, dp *inode.Inode) bool {
	buf := make([]byte, entrySize)
	for off := uint64(0); off < dp.Size; off += entrySize {
		n, err := c.Readi(dp, buf, off, entrySize)
		if err != nil || n != entrySize {
			panic("dirent: isempty: short directory read")
		}
		d := decode(buf)
		if d.Inum == common.NULLINUM {
			continue
		}
		name := string(nameBytes(d.Name))
		if name == "." || name == ".." {
			continue
		}
		return false
	}
	return true
}

// Dirunlink overwrites the entry at byte offset off with zeros, freeing
// the name without shrinking the directory (a later Dirlink may reuse
// the hole). Caller holds dp's content lock and is inside a transaction.
func Dirunlink(c *inode.Cache, dp *inode.Inode, off uint64) error {
	zero := make([]byte, entrySize)
	_, err := c.Writei(dp, zero, off, entrySize)
	return err
}

// ForEach calls fn for every non-empty entry in dp's content, in on-disk
// order, including "." and "..". Used by cmd/fsck to walk the tree
// without going through path resolution. Caller holds dp's content lock.
func ForEach(c *inode.Cache, dp *inode.Inode, fn func(name string, inum common.Inum, off uint64)) {
	buf := make([]byte, entrySize)
	for off := uint64(0); off < dp.Size; off += entrySize {
		n, err := c.Readi(dp, buf, off, entrySize)
		if err != nil || n != entrySize {
			panic("dirent: foreach: short directory read")
		}
		d := decode(buf)
		if d.Inum == common.NULLINUM {
			continue
		}
		fn(string(nameBytes(d.Name)), d.Inum, off)
	}
}

// Dirlink adds (name, inum) to dp's content. Fails with common.ErrExist
// if name is already present. Otherwise it reuses the first free
// (inum == 0) slot, or appends at dp.Size. Caller holds dp's content
// lock and is inside a log transaction.
func Dirlink(c *inode.Cache, dp *inode.Inode, name string, inum common.Inum) error {
	if dp.Type != common.T_DIR {
		panic("dirent: dirlink: not a directory")
	}

	buf := make([]byte, entrySize)
	off := dp.Size
	haveFree := false
	for o := uint64(0); o < dp.Size; o += entrySize {
		n, err := c.Readi(dp, buf, o, entrySize)
		if err != nil || n != entrySize {
			panic("dirent: dirlink: short directory read")
		}
		d := decode(buf)
		if d.Inum == common.NULLINUM {
			if !haveFree {
				off = o
				haveFree = true
			}
			continue
		}
		if namesMatch(d.Name, name) {
			return common.ErrExist
		}
	}

	d := dirent{Inum: inum, Name: encodeName(name)}
	_, err := c.Writei(dp, d.encode(), off, entrySize)
	return err
}
