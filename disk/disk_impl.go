package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var _ Disk = (*FileDisk)(nil)

// FileDisk backs a Disk with a regular file via pread/pwrite, growing the
// file to the requested size if it is new or the wrong length.
type FileDisk struct {
	fd        int
	numBlocks uint64
}

// NewFileDisk opens (creating if necessary) path as a numBlocks-block disk.
func NewFileDisk(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, err
	}
	wantSize := int64(numBlocks * BlockSize)
	if stat.Mode&unix.S_IFREG != 0 && stat.Size != wantSize {
		if err := unix.Ftruncate(fd, wantSize); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &FileDisk{fd: fd, numBlocks: numBlocks}, nil
}

func (d *FileDisk) checkAddr(a uint64) {
	if a >= d.numBlocks {
		panic(fmt.Sprintf("disk: out-of-bounds access at %d (size %d)", a, d.numBlocks))
	}
}

func (d *FileDisk) ReadAt(a uint64, blk Block) error {
	checkBlock(blk)
	d.checkAddr(a)
	n, err := unix.Pread(d.fd, blk, int64(a*BlockSize))
	if err != nil {
		return err
	}
	if uint64(n) != BlockSize {
		return fmt.Errorf("disk: short read at %d (%d bytes)", a, n)
	}
	return nil
}

func (d *FileDisk) WriteAt(a uint64, blk Block) error {
	checkBlock(blk)
	d.checkAddr(a)
	n, err := unix.Pwrite(d.fd, blk, int64(a*BlockSize))
	if err != nil {
		return err
	}
	if uint64(n) != BlockSize {
		return fmt.Errorf("disk: short write at %d (%d bytes)", a, n)
	}
	return nil
}

func (d *FileDisk) Size() uint64 {
	return d.numBlocks
}

func (d *FileDisk) Barrier() error {
	return unix.Fsync(d.fd)
}

func (d *FileDisk) Close() error {
	return unix.Close(d.fd)
}

var _ Disk = (*MemDisk)(nil)

// MemDisk is an entirely in-memory Disk, useful for tests.
type MemDisk struct {
	mu     sync.RWMutex
	blocks [][]byte
}

// NewMemDisk allocates a numBlocks-block in-memory disk, all zeroed.
func NewMemDisk(numBlocks uint64) *MemDisk {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = NewBlock()
	}
	return &MemDisk{blocks: blocks}
}

func (d *MemDisk) ReadAt(a uint64, blk Block) error {
	checkBlock(blk)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a >= uint64(len(d.blocks)) {
		return fmt.Errorf("disk: out-of-bounds read at %d", a)
	}
	copy(blk, d.blocks[a])
	return nil
}

func (d *MemDisk) WriteAt(a uint64, blk Block) error {
	checkBlock(blk)
	d.mu.Lock()
	defer d.mu.Unlock()
	if a >= uint64(len(d.blocks)) {
		return fmt.Errorf("disk: out-of-bounds write at %d", a)
	}
	copy(d.blocks[a], blk)
	return nil
}

func (d *MemDisk) Size() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.blocks))
}

func (d *MemDisk) Barrier() error { return nil }

func (d *MemDisk) Close() error { return nil }
