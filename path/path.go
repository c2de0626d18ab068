// Package path implements the component-wise path resolver: skipelem and
// the namex walk that backs both namei and nameiparent (spec.md §4.H).
package path

import (
	"strings"

	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/dirent"
	"github.com/tchajed/xv6fs/inode"
)

// SkipElem strips leading slashes from path and returns its first
// component along with everything after the trailing slashes that follow
// it. ok is false if path names no component at all (empty, or all
// slashes).
func SkipElem(path string) (elem string, rest string, ok bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i >= len(path) {
		return "", "", false
	}
	start := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	elem = path[start:i]
	for i < len(path) && path[i] == '/' {
		i++
	}
	return elem, path[i:], true
}

// Namex is the shared implementation behind Namei and NameiParent
// (spec.md §4.H). root is the root directory inode to start from when
// path is absolute; cwd is the starting point otherwise. When parent is
// true, resolution stops one component short and returns the parent
// (unlocked, referenced) plus the final component's name; otherwise it
// resolves all the way and returns the terminal inode.
func Namex(c *inode.Cache, root, cwd *inode.Inode, path string, parent bool) (*inode.Inode, string, error) {
	var cur *inode.Inode
	if strings.HasPrefix(path, "/") {
		cur = c.Idup(root)
	} else {
		cur = c.Idup(cwd)
	}

	rest := path
	for {
		name, next, ok := SkipElem(rest)
		if !ok {
			break
		}

		c.Ilock(cur)
		if cur.Type != common.T_DIR {
			c.IunlockPut(cur)
			return nil, "", common.ErrNotDir
		}
		if parent && next == "" {
			c.Iunlock(cur)
			return cur, name, nil
		}
		child, _, err := dirent.Dirlookup(c, cur, name)
		if err != nil {
			c.IunlockPut(cur)
			return nil, "", common.ErrNotExist
		}
		c.IunlockPut(cur)
		cur = child
		rest = next
	}

	if parent {
		// path had no final component at all (e.g. "/" or "").
		c.Iput(cur)
		return nil, "", common.ErrInvalid
	}
	return cur, "", nil
}

// Namei resolves path to its terminal inode (unlocked, referenced).
func Namei(c *inode.Cache, root, cwd *inode.Inode, path string) (*inode.Inode, error) {
	ip, _, err := Namex(c, root, cwd, path, false)
	return ip, err
}

// NameiParent resolves path's parent directory (unlocked, referenced)
// and reports the final path component by name.
func NameiParent(c *inode.Cache, root, cwd *inode.Inode, path string) (*inode.Inode, string, error) {
	return Namex(c, root, cwd, path, true)
}
