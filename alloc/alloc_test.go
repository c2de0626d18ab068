package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchajed/xv6fs/bcache"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/super"
	"github.com/tchajed/xv6fs/wal"
)

func mkEnv(t *testing.T, nblocks uint64) (*bcache.Cache, *wal.Log, super.Super) {
	nbits := common.BSIZE * 8
	nbitblocks := (nblocks + nbits - 1) / nbits
	sb := super.Super{
		BmapStart: 10,
		DataStart: 10 + nbitblocks,
		Nblocks:   nblocks,
	}
	d := disk.NewMemDisk(sb.DataStart + nblocks + 20)
	bc := bcache.New(d, 64)
	log := wal.Open(bc, sb.DataStart+nblocks, 10)
	return bc, log, sb
}

func TestBallocFirstFit(t *testing.T) {
	bc, log, sb := mkEnv(t, 64)
	log.BeginOp()
	b1 := Balloc(bc, log, sb)
	b2 := Balloc(bc, log, sb)
	log.EndOp()
	require.Equal(t, sb.DataStart, b1)
	require.Equal(t, sb.DataStart+1, b2)
	assert.NotEqual(t, b1, b2)
}

func TestBallocZeroesBlock(t *testing.T) {
	bc, log, sb := mkEnv(t, 64)
	log.BeginOp()
	b := bc.Get(sb.DataStart)
	for i := range b.Data {
		b.Data[i] = 0xaa
	}
	log.LogWrite(b)
	bc.Release(b)
	log.EndOp()

	log.BeginOp()
	blockno := Balloc(bc, log, sb)
	log.EndOp()

	got := bc.Get(blockno)
	defer bc.Release(got)
	for _, c := range got.Data {
		assert.Equal(t, byte(0), c)
	}
}

func TestBfreeThenReallocate(t *testing.T) {
	bc, log, sb := mkEnv(t, 8)
	log.BeginOp()
	b := Balloc(bc, log, sb)
	log.EndOp()

	log.BeginOp()
	Bfree(bc, log, sb, b)
	log.EndOp()

	log.BeginOp()
	b2 := Balloc(bc, log, sb)
	log.EndOp()
	assert.Equal(t, b, b2)
}

func TestBfreeDoubleFreePanics(t *testing.T) {
	bc, log, sb := mkEnv(t, 8)
	log.BeginOp()
	b := Balloc(bc, log, sb)
	Bfree(bc, log, sb, b)
	log.EndOp()

	assert.Panics(t, func() {
		log.BeginOp()
		defer log.EndOp()
		Bfree(bc, log, sb, b)
	})
}

func TestBallocExhaustionPanics(t *testing.T) {
	bc, log, sb := mkEnv(t, 4)
	log.BeginOp()
	defer log.EndOp()
	for i := 0; i < 4; i++ {
		Balloc(bc, log, sb)
	}
	assert.Panics(t, func() {
		Balloc(bc, log, sb)
	})
}
