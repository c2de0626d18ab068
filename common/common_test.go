package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNindirectMatchesOnDiskFormat(t *testing.T) {
	// The indirect block holds BSIZE/4 pointers of 4 bytes each.
	assert.Equal(t, BSIZE/4, uint64(NINDIRECT))
}

func TestMaxfileCoversDirectSingleAndDoubleIndirect(t *testing.T) {
	assert.Equal(t, uint64(NDIRECT+NINDIRECT+NINDIRECT*NINDIRECT), uint64(MAXFILE))
}

func TestErrorValuesAreDistinct(t *testing.T) {
	errs := []error{ErrNotExist, ErrExist, ErrInvalid, ErrIsDir, ErrNotDir, ErrSymlinkLoop, ErrNotEmpty}
	for i, a := range errs {
		for j, b := range errs {
			if i == j {
				continue
			}
			assert.NotEqual(t, a, b)
		}
	}
}

func TestInodeTypeTagsAreDistinct(t *testing.T) {
	types := []Itype{T_FREE, T_FILE, T_DIR, T_DEVICE, T_SYMLINK}
	seen := make(map[Itype]bool)
	for _, typ := range types {
		assert.False(t, seen[typ], "duplicate inode type tag %d", typ)
		seen[typ] = true
	}
}
