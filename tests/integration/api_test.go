package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/application/reminder"
	appstudent "github.com/schoolfees/backend/internal/application/student"
	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/infrastructure/auth"
	"github.com/schoolfees/backend/internal/infrastructure/cache"
	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/email"
	"github.com/schoolfees/backend/internal/infrastructure/event"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
	"github.com/schoolfees/backend/internal/interfaces/http/router"
)

type apiServer struct {
	engine *gin.Engine
	jwt    *auth.JWTService
}

// newAPIServer builds the HTTP stack over a migrated database, on the wall
// clock in UTC
func newAPIServer(t *testing.T, tdb *TestDB) *apiServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	log := zap.NewNop()

	studentRepo := persistence.NewGormStudentRepository(tdb.DB)
	ledgerRepo := persistence.NewGormFeeLedgerRepository(tdb.DB)
	notificationRepo := persistence.NewGormNotificationRepository(tdb.DB)

	claims := cache.NewInMemoryClaimStore()
	t.Cleanup(func() { _ = claims.Close() })

	settings := reminder.DefaultSettings()
	settings.Location = time.UTC

	locks := appfees.NewLedgerLocks()
	dedup := reminder.NewDeduplicator(notificationRepo, claims, nil, settings, log)
	dispatcher := reminder.NewDispatcher(ledgerRepo, studentRepo, notificationRepo, email.NewLogSender(log), dedup, settings, log,
		reminder.WithLedgerLocks(locks))
	scanner := reminder.NewScanner(ledgerRepo, studentRepo, dispatcher, dedup, settings, log,
		reminder.WithLedgerLocks(locks))

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(reminder.NewPaymentConfirmationHandler(dispatcher, log), fees.EventTypeInstallmentPaid)
	ledgerService := appfees.NewLedgerService(ledgerRepo, studentRepo, locks, log,
		appfees.WithLocation(time.UTC),
		appfees.WithEventPublisher(bus),
	)

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "integration-secret-with-enough-bytes",
		AccessTokenExpiration: time.Hour,
		Issuer:                "fees-integration",
	})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	systemHandler := handler.NewSystemHandler("fees-backend", "test", &persistence.Database{DB: tdb.DB})
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine).Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator: jwtService,
		Logger:    log,
	}))
	for _, g := range router.FeeRoutes(router.Handlers{
		Students:      handler.NewStudentHandler(appstudent.NewService(studentRepo, log)),
		Ledgers:       handler.NewLedgerHandler(ledgerService),
		Notifications: handler.NewNotificationHandler(dispatcher),
		Reminders:     handler.NewReminderHandler(scanner, dispatcher, nil),
		System:        systemHandler,
	}) {
		r.Register(g)
	}
	r.Setup()

	return &apiServer{engine: engine, jwt: jwtService}
}

func (s *apiServer) token(t *testing.T, perms ...string) string {
	t.Helper()
	issued, err := s.jwt.IssueToken(auth.IssueTokenInput{UserID: uuid.New(), Username: "bursar", Permissions: perms})
	require.NoError(t, err)
	return issued.AccessToken
}

func (s *apiServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestAPI_FeeLifecycle(t *testing.T) {
	srv := newAPIServer(t, NewTestDB(t))
	staff := srv.token(t,
		auth.PermStudentRead, auth.PermStudentWrite,
		auth.PermLedgerRead, auth.PermLedgerWrite,
		auth.PermPaymentRecord, auth.PermReminderRun,
		auth.PermNotificationRead, auth.PermNotificationWrite,
	)

	today := time.Now().UTC()
	year := fmt.Sprintf("%d-%d", today.Year(), today.Year()+1)

	w, _ := srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := srv.do(t, http.MethodPost, "/api/v1/students", staff, map[string]any{
		"admission_number": "ADM-900",
		"name":             "Meera Das",
		"guardian_email":   "meera.parent@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	studentID := resp.Data.(map[string]any)["id"].(string)

	w, resp = srv.do(t, http.MethodPost, "/api/v1/ledgers", staff, map[string]any{
		"student_id":    studentID,
		"academic_year": year,
		"tuition_fees":  1500,
		"installments": []map[string]any{
			{"installment_id": 1, "amount": 500, "due_date": today.AddDate(0, 0, -1).Format("2006-01-02")},
			{"installment_id": 2, "amount": 1000, "due_date": today.AddDate(0, 1, 0).Format("2006-01-02")},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ledgerID := resp.Data.(map[string]any)["id"].(string)

	t.Run("duplicate ledger conflicts", func(t *testing.T) {
		w, resp := srv.do(t, http.MethodPost, "/api/v1/ledgers", staff, map[string]any{
			"student_id":    studentID,
			"academic_year": year,
			"tuition_fees":  1500,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeAlreadyExists, resp.Error.Code)
	})

	t.Run("scan reminds the overdue installment", func(t *testing.T) {
		w, resp := srv.do(t, http.MethodPost, "/api/v1/reminders/scan", staff, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(1), resp.Data.(map[string]any)["sent"])

		w, resp = srv.do(t, http.MethodGet, "/api/v1/students/"+studentID+"/notifications/unread-count", staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), resp.Data.(map[string]any)["unread"])
	})

	t.Run("payment is recorded and confirmed", func(t *testing.T) {
		w, resp := srv.do(t, http.MethodPost, "/api/v1/ledgers/"+ledgerID+"/payments", staff, map[string]any{
			"installment_id":        1,
			"payment_mode":          "UPI",
			"transaction_reference": "UTR-1",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		ledger := resp.Data.(map[string]any)["ledger"].(map[string]any)
		assert.Equal(t, "PARTIALLY PAID", ledger["payment_status"])

		w, resp = srv.do(t, http.MethodGet, "/api/v1/students/"+studentID+"/notifications", staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, resp.Data.([]any), 2)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(2), resp.Meta.Total)
	})

	t.Run("paying the same installment again is rejected", func(t *testing.T) {
		w, resp := srv.do(t, http.MethodPost, "/api/v1/ledgers/"+ledgerID+"/payments", staff, map[string]any{
			"installment_id": 1,
			"payment_mode":   "CASH",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})

	t.Run("read-all clears the unread count", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodPost, "/api/v1/students/"+studentID+"/notifications/read-all", staff, nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, resp := srv.do(t, http.MethodGet, "/api/v1/students/"+studentID+"/notifications/unread-count", staff, nil)
		assert.Equal(t, float64(0), resp.Data.(map[string]any)["unread"])
	})
}

func TestAPI_AccessControl(t *testing.T) {
	srv := newAPIServer(t, NewTestDB(t))

	t.Run("missing token", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodGet, "/api/v1/students", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("read-only staff cannot record payments", func(t *testing.T) {
		reader := srv.token(t, auth.PermLedgerRead)
		w, resp := srv.do(t, http.MethodPost, "/api/v1/ledgers/"+uuid.NewString()+"/payments", reader, map[string]any{
			"installment_id": 1,
			"payment_mode":   "CASH",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, resp.Error.Code)
	})

	t.Run("unknown ledger", func(t *testing.T) {
		reader := srv.token(t, auth.PermLedgerRead)
		w, resp := srv.do(t, http.MethodGet, "/api/v1/ledgers/"+uuid.NewString(), reader, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}
