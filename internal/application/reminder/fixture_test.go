package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/notification"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/email"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
)

type stubSender struct {
	mu     sync.Mutex
	fail   bool
	sent   []email.Message
	onSend func(email.Message)
}

func (s *stubSender) Send(_ context.Context, msg email.Message) error {
	if s.onSend != nil {
		s.onSend(msg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type countingMetrics struct {
	mu          sync.Mutex
	sent        map[string]int
	emailFailed map[string]int
	scansByPass map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		sent:        map[string]int{},
		emailFailed: map[string]int{},
		scansByPass: map[string]int{},
	}
}

func (m *countingMetrics) ReminderSent(_ context.Context, typ string) {
	m.mu.Lock()
	m.sent[typ]++
	m.mu.Unlock()
}

func (m *countingMetrics) EmailFailed(_ context.Context, typ string) {
	m.mu.Lock()
	m.emailFailed[typ]++
	m.mu.Unlock()
}

func (m *countingMetrics) ScanCompleted(_ context.Context, pass string, _ time.Duration) {
	m.mu.Lock()
	m.scansByPass[pass]++
	m.mu.Unlock()
}

type fixture struct {
	ctx           context.Context
	now           time.Time
	ledgers       *persistence.GormFeeLedgerRepository
	students      *persistence.GormStudentRepository
	notifications *persistence.GormNotificationRepository
	sender        *stubSender
	metrics       *countingMetrics
	locks         *appfees.LedgerLocks
	dedup         *Deduplicator
	dispatcher    *Dispatcher
	scanner       *Scanner
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	claims shared.ClaimStore
}

func withClaims(store shared.ClaimStore) fixtureOption {
	return func(c *fixtureConfig) { c.claims = store }
}

func newFixture(t *testing.T, now time.Time, opts ...fixtureOption) *fixture {
	t.Helper()
	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := persistence.NewDatabaseWithCustomLogger(&config.DatabaseConfig{Driver: "sqlite"}, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		ctx:           context.Background(),
		now:           now,
		ledgers:       persistence.NewGormFeeLedgerRepository(db.DB),
		students:      persistence.NewGormStudentRepository(db.DB),
		notifications: persistence.NewGormNotificationRepository(db.DB),
		sender:        &stubSender{},
		metrics:       newCountingMetrics(),
		locks:         appfees.NewLedgerLocks(),
	}

	settings := DefaultSettings()
	settings.Location = time.UTC
	settings.Workers = 4
	settings.CurrencyLabel = "Rs."

	clock := func() time.Time { return f.now }
	f.dedup = NewDeduplicator(f.notifications, cfg.claims, clock, settings, zap.NewNop())
	opt := []Option{WithClock(clock), WithMetrics(f.metrics), WithLedgerLocks(f.locks)}
	f.dispatcher = NewDispatcher(f.ledgers, f.students, f.notifications, f.sender, f.dedup, settings, zap.NewNop(), opt...)
	f.scanner = NewScanner(f.ledgers, f.students, f.dispatcher, f.dedup, settings, zap.NewNop(), opt...)
	return f
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func amount(v int64) *int64 { return &v }

func (f *fixture) addStudent(t *testing.T, admission, name, guardianEmail string) *student.Student {
	t.Helper()
	st, err := student.NewStudent(admission, name, "5A", "", guardianEmail)
	require.NoError(t, err)
	require.NoError(t, f.students.Save(f.ctx, st))
	return st
}

// addLedger stores a 2300 ledger: installment 1 of 1000 due 2024-06-01 and
// installment 2 of 1000+300 due 2024-07-01
func (f *fixture) addLedger(t *testing.T, studentID uuid.UUID, year string, initial *int64) *fees.FeeLedger {
	t.Helper()
	l, err := fees.NewFeeLedger(
		studentID,
		year,
		fees.FeeBreakdown{
			TuitionFees:    amount(2000),
			AdditionalFees: fees.AdditionalFees{"transport_fee": 300},
		},
		initial,
		"CASH",
		[]fees.InstallmentSpec{
			{Sequence: 1, Amount: 1000, DueDate: date(2024, 6, 1)},
			{Sequence: 2, Amount: 1000, AddonAmount: 300, DueDate: date(2024, 7, 1)},
		},
	)
	require.NoError(t, err)
	l.ClearPendingEvents()
	require.NoError(t, f.ledgers.Save(f.ctx, l))
	return l
}

func (f *fixture) notificationsOf(t *testing.T, studentID uuid.UUID) []notification.Notification {
	t.Helper()
	filter := notification.Filter{Filter: shared.DefaultFilter()}
	items, _, err := f.notifications.FindByStudent(f.ctx, studentID, filter)
	require.NoError(t, err)
	return items
}
