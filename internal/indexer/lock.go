package indexer

import "sync/atomic"

// SyncLock rejects overlapping syncs inside one process. It does not block:
// a caller that loses the race gets ErrSyncInProgress instead of waiting.
type SyncLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *SyncLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *SyncLock) Release() {
	l.held.Store(false)
}

// Held reports whether a sync is running
func (l *SyncLock) Held() bool {
	return l.held.Load()
}
