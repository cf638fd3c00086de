package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerLocks_SerialisesOneLedger(t *testing.T) {
	locks := NewLedgerLocks()
	ctx := context.Background()
	id := uuid.New()

	unlock, err := locks.Lock(ctx, id)
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		u, err := locks.Lock(ctx, id)
		if err == nil {
			acquired <- u
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case u := <-acquired:
		u()
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken after unlock")
	}
	assert.Zero(t, locks.Len())
}

func TestLedgerLocks_IndependentLedgers(t *testing.T) {
	locks := NewLedgerLocks()
	ctx := context.Background()

	a, err := locks.Lock(ctx, uuid.New())
	require.NoError(t, err)
	b, err := locks.Lock(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, locks.Len())

	a()
	b()
	assert.Zero(t, locks.Len())
}

func TestLedgerLocks_ContextCancelled(t *testing.T) {
	locks := NewLedgerLocks()
	id := uuid.New()

	unlock, err := locks.Lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.Len())

	unlock()
	unlock()
	assert.Zero(t, locks.Len())
}
