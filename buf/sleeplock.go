package buf

import "sync"

// sleepLock is a lock that may block the caller, as opposed to the cache's
// spin-lock which is only ever held for a handful of instructions. Named to
// match the vocabulary the rest of the file system uses for inode and
// buffer content locks.
type sleepLock struct {
	mu sync.Mutex
}

func (l *sleepLock) Acquire() { l.mu.Lock() }
func (l *sleepLock) Release() { l.mu.Unlock() }
