package usecase

import "sync"

// RunLease serializes pipeline runs. The pipeline shares a fixed work
// directory across runs, so two overlapping triggers would corrupt each
// other's intermediate files; an overlapping trigger is skipped, never
// queued.
type RunLease struct {
	mu sync.Mutex
}

// TryAcquire takes the lease if it is free.
func (l *RunLease) TryAcquire() bool {
	return l.mu.TryLock()
}

// Release frees the lease. Only the holder may call it.
func (l *RunLease) Release() {
	l.mu.Unlock()
}
