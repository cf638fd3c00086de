package fees

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LedgerLocks serialises work on a single ledger inside this process.
// Payment recording and reminder dispatch for the same ledger take the same
// lock, so a scan never observes a half-recorded payment. Locks for different
// ledgers are independent.
type LedgerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*ledgerLock
}

type ledgerLock struct {
	sem  chan struct{}
	refs int
}

// NewLedgerLocks creates an empty lock table
func NewLedgerLocks() *LedgerLocks {
	return &LedgerLocks{locks: make(map[uuid.UUID]*ledgerLock)}
}

// Lock blocks until the ledger is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *LedgerLocks) Lock(ctx context.Context, ledgerID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[ledgerID]
	if !ok {
		lk = &ledgerLock{sem: make(chan struct{}, 1)}
		l.locks[ledgerID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(ledgerID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.release(ledgerID, lk)
		})
	}, nil
}

func (l *LedgerLocks) release(ledgerID uuid.UUID, lk *ledgerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, ledgerID)
	}
}

// Len returns the number of ledgers currently locked or awaited
func (l *LedgerLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
