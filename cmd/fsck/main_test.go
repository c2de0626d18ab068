package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchajed/xv6fs/alloc"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/fs"
)

func mkChecker(fsys *fs.FS) *checker {
	return &checker{
		fsys:       fsys,
		c:          fsys.Cache(),
		seen:       make(map[common.Inum]bool),
		nlinkFound: make(map[common.Inum]uint64),
		nlinkDisk:  make(map[common.Inum]uint64),
		reachable:  make(map[common.Bnum]bool),
	}
}

func runChecker(fsys *fs.FS) *checker {
	chk := mkChecker(fsys)
	chk.walk(chk.c.Iget(common.ROOTINO), common.ROOTINO)
	chk.checkLinkCounts()
	chk.checkBitmap()
	return chk
}

// A freshly formatted image has only the root directory and should be
// reported clean.
func TestFsckCleanOnFreshImage(t *testing.T) {
	d := disk.NewMemDisk(2000)
	fs.Format(d, fs.Config{Size: 2000, Ninodes: 200, Nlog: 64})
	fsys := fs.Mount(d)

	chk := runChecker(fsys)
	assert.Equal(t, 0, chk.errs)
}

// Nested directories exercise the rule that a child's ".." entry counts
// toward its parent's link count, without double-counting the root's own
// self-referential "..".
func TestFsckNestedDirectoriesLinkCountsMatch(t *testing.T) {
	d := disk.NewMemDisk(2000)
	fs.Format(d, fs.Config{Size: 2000, Ninodes: 200, Nlog: 64})
	fsys := fs.Mount(d)
	p := fsys.NewProc()

	require.NoError(t, fsys.Mkdir(p, "/a"))
	require.NoError(t, fsys.Mkdir(p, "/a/b"))
	require.NoError(t, fsys.Mkdir(p, "/a/c"))

	chk := runChecker(fsys)
	assert.Equal(t, 0, chk.errs)
}

// A file with a second hard link still reports a clean link count, and
// unlinking the original name leaves the second name's count correct.
func TestFsckHardLinkedFileLinkCountMatches(t *testing.T) {
	d := disk.NewMemDisk(2000)
	fs.Format(d, fs.Config{Size: 2000, Ninodes: 200, Nlog: 64})
	fsys := fs.Mount(d)
	p := fsys.NewProc()

	ip, err := fsys.Create(p, "/x", common.T_FILE, 0, 0)
	require.NoError(t, err)
	fsys.Cache().IunlockPut(ip)
	require.NoError(t, fsys.Link(p, "/x", "/y"))
	require.NoError(t, fsys.Unlink(p, "/x"))

	chk := runChecker(fsys)
	assert.Equal(t, 0, chk.errs)
}

// A block that is allocated but not reachable from any inode must be
// flagged; this simulates the leak a crash mid-truncate could leave
// behind before fsck-style recovery is run.
func TestFsckDetectsUnreachableAllocatedBlock(t *testing.T) {
	d := disk.NewMemDisk(2000)
	sb := fs.Format(d, fs.Config{Size: 2000, Ninodes: 200, Nlog: 64})
	fsys := fs.Mount(d)

	bc := fsys.Cache().Bcache()
	log := fsys.Cache().Log()
	log.BeginOp()
	alloc.Balloc(bc, log, sb)
	log.EndOp()

	chk := runChecker(fsys)
	assert.Greater(t, chk.errs, 0)
}
