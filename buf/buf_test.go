package buf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tchajed/xv6fs/disk"
)

func TestNewBufIsUnpinnedAndClean(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.Ref())
	assert.False(t, b.Valid)
	assert.False(t, b.IsDirty())
	assert.Equal(t, int(disk.BlockSize), len(b.Data))
}

func TestRefCounting(t *testing.T) {
	b := New()
	b.IncRef()
	b.IncRef()
	assert.Equal(t, 2, b.Ref())
	b.DecRef()
	assert.Equal(t, 1, b.Ref())
}

func TestDirtyFlag(t *testing.T) {
	b := New()
	assert.False(t, b.IsDirty())
	b.SetDirty()
	assert.True(t, b.IsDirty())
	b.ClearDirty()
	assert.False(t, b.IsDirty())
}

func TestTouchRecordsLastUse(t *testing.T) {
	b := New()
	assert.Equal(t, uint64(0), b.LastUse())
	b.Touch(42)
	assert.Equal(t, uint64(42), b.LastUse())
}

// Lock excludes a second Acquire until Unlock runs, the same way every
// caller in bcache/inode relies on it to serialize access to Data.
func TestLockExcludesConcurrentAcquire(t *testing.T) {
	b := New()
	b.Lock()

	acquired := make(chan struct{})
	go func() {
		b.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	b.Unlock()
	<-acquired
	b.Unlock()
}
