package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := NewDatabaseWithCustomLogger(&config.DatabaseConfig{Driver: "sqlite"}, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func amount(v int64) *int64 { return &v }

func newLedger(t *testing.T, studentID uuid.UUID, year string) *fees.FeeLedger {
	l, err := fees.NewFeeLedger(
		studentID,
		year,
		fees.FeeBreakdown{
			TuitionFees:    amount(2000),
			AdditionalFees: fees.AdditionalFees{"transport": 300},
		},
		nil,
		"CASH",
		[]fees.InstallmentSpec{
			{Sequence: 1, Amount: 1000, DueDate: day(2024, 6, 1)},
			{Sequence: 2, Amount: 1000, AddonAmount: 300, DueDate: day(2024, 7, 1)},
		},
	)
	require.NoError(t, err)
	return l
}

func TestGormFeeLedgerRepository_SaveAndFind(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()
	studentID := uuid.New()

	ledger := newLedger(t, studentID, "2024-2025")
	require.NoError(t, repo.Save(ctx, ledger))

	t.Run("by id round-trips the aggregate", func(t *testing.T) {
		found, err := repo.FindByID(ctx, ledger.ID)
		require.NoError(t, err)

		assert.Equal(t, studentID, found.StudentID)
		assert.Equal(t, "2024-2025", found.AcademicYear)
		assert.Equal(t, int64(2300), found.TotalFees())
		assert.Equal(t, int64(300), found.AdditionalFees["transport"])
		require.Len(t, found.Installments, 2)
		assert.Equal(t, 1, found.Installments[0].Sequence)
		assert.Equal(t, 2, found.Installments[1].Sequence)
		assert.Equal(t, *day(2024, 7, 1), *found.Installments[1].DueDate)
		assert.Nil(t, found.Installments[0].PaidDate)
	})

	t.Run("by student and year", func(t *testing.T) {
		found, err := repo.FindByStudentAndYear(ctx, studentID, "2024-2025")
		require.NoError(t, err)
		assert.Equal(t, ledger.ID, found.ID)
	})

	t.Run("missing ledger maps to not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByStudentAndYear(ctx, studentID, "2030-2031")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("exists check", func(t *testing.T) {
		exists, err := repo.ExistsForStudentAndYear(ctx, studentID, "2024-2025")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsForStudentAndYear(ctx, studentID, "2025-2026")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestGormFeeLedgerRepository_DuplicateYear(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()
	studentID := uuid.New()

	require.NoError(t, repo.Save(ctx, newLedger(t, studentID, "2024-2025")))

	err := repo.Save(ctx, newLedger(t, studentID, "2024-2025"))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormFeeLedgerRepository_FindLatestAndByStudent(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()
	studentID := uuid.New()

	require.NoError(t, repo.Save(ctx, newLedger(t, studentID, "2023-2024")))
	require.NoError(t, repo.Save(ctx, newLedger(t, studentID, "2024-2025")))
	require.NoError(t, repo.Save(ctx, newLedger(t, uuid.New(), "2025-2026")))

	latest, err := repo.FindLatestByStudent(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, "2024-2025", latest.AcademicYear)

	all, err := repo.FindByStudent(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-2025", all[0].AcademicYear)
	assert.Equal(t, "2023-2024", all[1].AcademicYear)

	_, err = repo.FindLatestByStudent(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormFeeLedgerRepository_FindAll(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()
	studentID := uuid.New()

	paid := newLedger(t, studentID, "2023-2024")
	today := *day(2024, 5, 1)
	_, err := paid.RecordPayment(1, "CASH", "", today, 100)
	require.NoError(t, err)
	_, err = paid.RecordPayment(2, "CASH", "", today, 100)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, paid))
	require.NoError(t, repo.Save(ctx, newLedger(t, studentID, "2024-2025")))
	require.NoError(t, repo.Save(ctx, newLedger(t, uuid.New(), "2024-2025")))

	t.Run("filters by student", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, fees.LedgerFilter{StudentID: &studentID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)
	})

	t.Run("filters by payment status", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, fees.LedgerFilter{PaymentStatus: fees.PaymentStatusFullyPaid})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, list, 1)
		assert.Equal(t, paid.ID, list[0].ID)
		assert.True(t, list[0].IsFullyPaid())
	})

	t.Run("paginates", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, fees.LedgerFilter{
			Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "academic_year", OrderDir: "asc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, list, 1)
	})
}

func TestGormFeeLedgerRepository_FindRefsWithUnpaidDueBy(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()

	dueJune := newLedger(t, uuid.New(), "2024-2025")
	require.NoError(t, repo.Save(ctx, dueJune))

	paidJune := newLedger(t, uuid.New(), "2024-2025")
	_, err := paidJune.RecordPayment(1, "CASH", "", *day(2024, 5, 20), 100)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, paidJune))

	t.Run("includes installments due on the date", func(t *testing.T) {
		refs, err := repo.FindRefsWithUnpaidDueBy(ctx, *day(2024, 6, 1))
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, dueJune.ID, refs[0].LedgerID)
		assert.Equal(t, dueJune.StudentID, refs[0].StudentID)
		assert.Equal(t, "2024-2025", refs[0].AcademicYear)
	})

	t.Run("excludes installments due later", func(t *testing.T) {
		refs, err := repo.FindRefsWithUnpaidDueBy(ctx, *day(2024, 5, 31))
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("each ledger appears once", func(t *testing.T) {
		refs, err := repo.FindRefsWithUnpaidDueBy(ctx, *day(2024, 8, 1))
		require.NoError(t, err)
		assert.Len(t, refs, 2)
	})

	t.Run("outstanding ledgers", func(t *testing.T) {
		refs, err := repo.FindRefsWithOutstanding(ctx)
		require.NoError(t, err)
		assert.Len(t, refs, 2)
	})
}

func TestGormFeeLedgerRepository_SaveWithLock(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()

	ledger := newLedger(t, uuid.New(), "2024-2025")
	require.NoError(t, repo.Save(ctx, ledger))

	t.Run("persists payment and bumps version", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, ledger.ID)
		require.NoError(t, err)

		_, err = loaded.RecordPayment(1, "UPI", "TXN-1", *day(2024, 6, 4), 100)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, loaded))

		reloaded, err := repo.FindByID(ctx, ledger.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Version)
		inst, err := reloaded.FindInstallment(1)
		require.NoError(t, err)
		assert.True(t, inst.IsPaid())
		assert.Equal(t, "TXN-1", inst.TransactionReference)
		assert.Equal(t, int64(300), inst.AssessedLateFee)
		assert.Equal(t, fees.PaymentStatusPartiallyPaid, reloaded.PaymentStatus())
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, ledger.ID)
		require.NoError(t, err)
		fresh, err := repo.FindByID(ctx, ledger.ID)
		require.NoError(t, err)

		_, err = fresh.RecordPayment(2, "CASH", "", *day(2024, 7, 1), 100)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, fresh))

		_, err = stale.RecordPayment(2, "CASH", "", *day(2024, 7, 1), 100)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrentModification)
	})

	t.Run("unknown ledger", func(t *testing.T) {
		other := newLedger(t, uuid.New(), "2024-2025")
		other.BumpVersion()
		assert.ErrorIs(t, repo.SaveWithLock(ctx, other), shared.ErrNotFound)
	})
}

func TestGormFeeLedgerRepository_ReplaceSchedule(t *testing.T) {
	repo := NewGormFeeLedgerRepository(setupTestDB(t))
	ctx := context.Background()

	ledger := newLedger(t, uuid.New(), "2024-2025")
	require.NoError(t, repo.Save(ctx, ledger))
	firstID := ledger.Installments[0].ID

	err := ledger.ApplyUpdate(fees.LedgerPatch{
		ReplaceInstallments: true,
		Installments: []fees.InstallmentSpec{
			{Sequence: 3, Amount: 500, DueDate: day(2024, 5, 1)},
			{Sequence: 1, Amount: 1800, DueDate: day(2024, 6, 15)},
		},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, ledger))

	found, err := repo.FindByID(ctx, ledger.ID)
	require.NoError(t, err)
	require.Len(t, found.Installments, 2)
	assert.Equal(t, 3, found.Installments[0].Sequence, "schedule order is preserved")
	assert.Equal(t, 1, found.Installments[1].Sequence)
	assert.Equal(t, firstID, found.Installments[1].ID)
	assert.Equal(t, int64(1800), found.Installments[1].Amount)

	_, err = found.FindInstallment(2)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormFeeLedgerRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormFeeLedgerRepository(db)
	ctx := context.Background()

	ledger := newLedger(t, uuid.New(), "2024-2025")
	require.NoError(t, repo.Save(ctx, ledger))

	require.NoError(t, repo.Delete(ctx, ledger.ID))

	_, err := repo.FindByID(ctx, ledger.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	var remaining int64
	require.NoError(t, db.Table("installments").Where("ledger_id = ?", ledger.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	assert.ErrorIs(t, repo.Delete(ctx, ledger.ID), shared.ErrNotFound)
}
