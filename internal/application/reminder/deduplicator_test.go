package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/notification"
)

type mockClaimStore struct {
	mock.Mock
}

func (m *mockClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockClaimStore) IsClaimed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockClaimStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockClaimStore) Close() error {
	return m.Called().Error(0)
}

func TestDeduplicator_AlreadySentToday(t *testing.T) {
	f := newFixture(t, at(2024, 6, 2, 23))
	studentID, installmentID := uuid.New(), uuid.New()

	sent, err := f.dedup.AlreadySentToday(f.ctx, studentID, installmentID)
	require.NoError(t, err)
	assert.False(t, sent)

	n, err := notification.New(notification.Params{
		StudentID:     studentID,
		InstallmentID: &installmentID,
		Type:          notification.TypeOverdueReminder,
		Title:         "Installment 1 is overdue",
	}, at(2024, 6, 2, 0))
	require.NoError(t, err)
	require.NoError(t, f.notifications.Save(f.ctx, n))

	sent, err = f.dedup.AlreadySentToday(f.ctx, studentID, installmentID)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = f.dedup.AlreadySentToday(f.ctx, studentID, uuid.New())
	require.NoError(t, err)
	assert.False(t, sent, "other installments are independent")

	f.now = at(2024, 6, 3, 0)
	sent, err = f.dedup.AlreadySentToday(f.ctx, studentID, installmentID)
	require.NoError(t, err)
	assert.False(t, sent, "the window is the calendar day")
}

func TestDeduplicator_Claims(t *testing.T) {
	now := at(2024, 6, 2, 9)
	clock := func() time.Time { return now }
	settings := DefaultSettings()
	settings.Location = time.UTC

	t.Run("uses a dated key", func(t *testing.T) {
		store := new(mockClaimStore)
		store.On("Claim", mock.Anything, "reminder:x:2024-06-02", claimTTL).Return(false, nil).Once()
		store.On("Release", mock.Anything, "reminder:x:2024-06-02").Return(nil).Once()

		d := NewDeduplicator(nil, store, clock, settings, zap.NewNop())
		assert.False(t, d.Claim(context.Background(), "reminder:x"))
		d.Release(context.Background(), "reminder:x")
		store.AssertExpectations(t)
	})

	t.Run("store errors fall back to the database check", func(t *testing.T) {
		store := new(mockClaimStore)
		store.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

		d := NewDeduplicator(nil, store, clock, settings, zap.NewNop())
		assert.True(t, d.Claim(context.Background(), "reminder:x"))
	})

	t.Run("no store always claims", func(t *testing.T) {
		d := NewDeduplicator(nil, nil, clock, settings, zap.NewNop())
		assert.True(t, d.Claim(context.Background(), "reminder:x"))
		d.Release(context.Background(), "reminder:x")
	})
}
