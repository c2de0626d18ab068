package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/dirent"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/inode"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

func TestSkipElem(t *testing.T) {
	cases := []struct {
		path, elem, rest string
		ok               bool
	}{
		{"/a/b", "a", "b", true},
		{"a/b", "a", "b", true},
		{"a", "a", "", true},
		{"/", "", "", false},
		{"", "", "", false},
		{"//a//b//", "a", "b//", true},
	}
	for _, c := range cases {
		elem, rest, ok := SkipElem(c.path)
		assert.Equal(t, c.ok, ok, c.path)
		if ok {
			assert.Equal(t, c.elem, elem, c.path)
			assert.Equal(t, c.rest, rest, c.path)
		}
	}
}

type env struct {
	c    *inode.Cache
	root *inode.Inode
}

func mkTree(t *testing.T) env {
	ninodes := uint64(200)
	nblocks := uint64(200)
	inodeBlocks := (ninodes + super.IPB - 1) / super.IPB
	nbits := common.BSIZE * 8
	bmapBlocks := (nblocks + nbits - 1) / nbits

	sb := super.Super{
		InodeStart: 10,
		BmapStart:  10 + inodeBlocks,
		Ninodes:    ninodes,
	}
	sb.DataStart = sb.BmapStart + bmapBlocks
	sb.Nblocks = nblocks
	logStart := sb.DataStart + nblocks

	d := disk.NewMemDisk(logStart + 20)
	bc := bcache.New(d, 200)
	log := wal.Open(bc, logStart, 10)
	c := inode.New(bc, log, sb)

	// Build root (inum 1) as a directory with a "sub" subdirectory
	// containing a file "leaf".
	log.BeginOp()
	rootInum := c.Ialloc(common.T_DIR)
	log.EndOp()
	if rootInum != common.ROOTINO {
		t.Fatalf("expected root inum %d, got %d", common.ROOTINO, rootInum)
	}
	root := c.Iget(rootInum)
	c.Ilock(root)
	root.Nlink = 1
	c.Iupdate(root)

	log.BeginOp()
	subInum := c.Ialloc(common.T_DIR)
	log.EndOp()
	sub := c.Iget(subInum)
	c.Ilock(sub)
	sub.Nlink = 1
	c.Iupdate(sub)

	log.BeginOp()
	require.NoError(t, dirent.Dirlink(c, root, "sub", subInum))
	log.EndOp()

	log.BeginOp()
	fileInum := c.Ialloc(common.T_FILE)
	log.EndOp()
	file := c.Iget(fileInum)
	c.Ilock(file)
	file.Nlink = 1
	c.Iupdate(file)
	c.Iunlock(file)
	c.Iput(file)

	log.BeginOp()
	require.NoError(t, dirent.Dirlink(c, sub, "leaf", fileInum))
	log.EndOp()

	c.Iunlock(sub)
	c.Iput(sub)
	c.Iunlock(root)

	return env{c: c, root: root}
}

func TestNameiResolvesNestedPath(t *testing.T) {
	e := mkTree(t)
	ip, err := Namei(e.c, e.root, e.root, "/sub/leaf")
	require.NoError(t, err)
	e.c.Ilock(ip)
	assert.Equal(t, common.T_FILE, ip.Type)
	e.c.IunlockPut(ip)
}

func TestNameiParentSplitsFinalComponent(t *testing.T) {
	e := mkTree(t)
	dir, name, err := NameiParent(e.c, e.root, e.root, "/sub/leaf")
	require.NoError(t, err)
	assert.Equal(t, "leaf", name)
	e.c.Ilock(dir)
	assert.Equal(t, common.T_DIR, dir.Type)
	e.c.IunlockPut(dir)
}

func TestNameiMissingComponentFails(t *testing.T) {
	e := mkTree(t)
	_, err := Namei(e.c, e.root, e.root, "/sub/nope")
	assert.Equal(t, common.ErrNotExist, err)
}

func TestNameiThroughFileFails(t *testing.T) {
	e := mkTree(t)
	_, err := Namei(e.c, e.root, e.root, "/sub/leaf/x")
	assert.Equal(t, common.ErrNotDir, err)
}

func TestNameiParentOfRootFails(t *testing.T) {
	e := mkTree(t)
	_, _, err := NameiParent(e.c, e.root, e.root, "/")
	assert.Equal(t, common.ErrInvalid, err)
}
