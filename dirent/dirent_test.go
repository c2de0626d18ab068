package dirent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/inode"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

func mkCache(t *testing.T, nblocks uint64) *inode.Cache {
	ninodes := uint64(200)
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
	return inode.New(bc, log, sb)
}

func mkDir(t *testing.T, c *inode.Cache) *inode.Inode {
	c.Log().BeginOp()
	inum := c.Ialloc(common.T_DIR)
	c.Log().EndOp()
	ip := c.Iget(inum)
	c.Ilock(ip)
	return ip
}

func TestDirlinkThenLookup(t *testing.T) {
	c := mkCache(t, 64)
	dp := mkDir(t, c)

	c.Log().BeginOp()
	err := Dirlink(c, dp, "a.txt", 42)
	c.Log().EndOp()
	require.NoError(t, err)

	child, off, err := Dirlookup(c, dp, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, common.Inum(42), child.Inum)
	assert.Equal(t, uint64(0), off)
	c.Iput(child)

	c.Iunlock(dp)
	c.Iput(dp)
}

func TestDirlinkDuplicateNameFails(t *testing.T) {
	c := mkCache(t, 64)
	dp := mkDir(t, c)

	c.Log().BeginOp()
	require.NoError(t, Dirlink(c, dp, "x", 1))
	err := Dirlink(c, dp, "x", 2)
	c.Log().EndOp()
	assert.Equal(t, common.ErrExist, err)

	c.Iunlock(dp)
	c.Iput(dp)
}

func TestDirlookupMissingName(t *testing.T) {
	c := mkCache(t, 64)
	dp := mkDir(t, c)

	_, _, err := Dirlookup(c, dp, "nope")
	assert.Equal(t, common.ErrNotExist, err)

	c.Iunlock(dp)
	c.Iput(dp)
}

func TestDirlinkReusesFreedSlot(t *testing.T) {
	c := mkCache(t, 64)
	dp := mkDir(t, c)

	c.Log().BeginOp()
	require.NoError(t, Dirlink(c, dp, "a", 1))
	require.NoError(t, Dirlink(c, dp, "b", 2))
	c.Log().EndOp()

	// Simulate unlink zeroing the first entry's inum.
	zero := make([]byte, entrySize)
	c.Log().BeginOp()
	_, err := c.Writei(dp, zero, 0, entrySize)
	c.Log().EndOp()
	require.NoError(t, err)
	sizeAfterFree := dp.Size

	c.Log().BeginOp()
	require.NoError(t, Dirlink(c, dp, "c", 3))
	c.Log().EndOp()

	assert.Equal(t, sizeAfterFree, dp.Size) // reused the hole, didn't grow

	child, off, err := Dirlookup(c, dp, "c")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)
	assert.Equal(t, common.Inum(3), child.Inum)
	c.Iput(child)

	c.Iunlock(dp)
	c.Iput(dp)
}

func TestNameTruncationEquality(t *testing.T) {
	c := mkCache(t, 64)
	dp := mkDir(t, c)

	long := "abcdefghijklmnop" // 16 bytes, > DIRSIZ (14)
	c.Log().BeginOp()
	require.NoError(t, Dirlink(c, dp, long, 7))
	c.Log().EndOp()

	// Differs only after the first DIRSIZ bytes.
	lookup := strings.Repeat("x", 0) + long[:common.DIRSIZ] + "XX"
	child, _, err := Dirlookup(c, dp, lookup)
	require.NoError(t, err)
	assert.Equal(t, common.Inum(7), child.Inum)
	c.Iput(child)

	c.Iunlock(dp)
	c.Iput(dp)
}
