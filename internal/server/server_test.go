package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/subflowhq/rebill/internal/clock"
	"github.com/subflowhq/rebill/internal/config"
	"github.com/subflowhq/rebill/internal/gateway"
	"github.com/subflowhq/rebill/internal/notify"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/subflowhq/rebill/internal/payment/repository"
	paymentservice "github.com/subflowhq/rebill/internal/payment/service"
	"github.com/subflowhq/rebill/internal/rebill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type scriptedGateway struct {
	initOutcome gateway.Outcome
	initErr     error
	cancelCalls []string
}

func (s *scriptedGateway) InitializeSubscription(context.Context, gateway.SubscriberProfile, string) (gateway.Outcome, error) {
	return s.initOutcome, s.initErr
}

func (s *scriptedGateway) CancelSubscription(_ context.Context, ref string) (gateway.Outcome, error) {
	s.cancelCalls = append(s.cancelCalls, ref)
	return gateway.Outcome{Success: true}, nil
}

func (s *scriptedGateway) RetrySubscription(context.Context, string) (gateway.Outcome, error) {
	return gateway.Outcome{}, nil
}

type serverFixture struct {
	db     *gorm.DB
	gw     *scriptedGateway
	router *gin.Engine
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.PaymentRecord{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	plans, err := config.NewPlanCatalogHolderFrom(config.DefaultPlanCatalog())
	require.NoError(t, err)

	log := zap.NewNop()
	repo := repository.Provide()
	gw := &scriptedGateway{}

	sched, err := rebill.New(rebill.Params{
		DB:      db,
		Log:     log,
		Repo:    repo,
		Gateway: gw,
		Plans:   plans,
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	srv := New(Params{
		Config:     config.Config{ServerAddr: ":0"},
		Log:        log,
		PaymentSvc: paymentservice.Provide(db, log, repo, node),
		Gateway:    gw,
		Plans:      plans,
		Notifier:   notify.NewNotifier(notify.Config{}, log),
		Scheduler:  sched,
	})
	return &serverFixture{db: db, gw: gw, router: srv.Router()}
}

func checkoutBody(t *testing.T) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"plan":        "plus",
		"firstName":   "Jane",
		"lastName":    "Doe",
		"countryCode": "DE",
		"email":       "jane@example.com",
		"cardHolder":  "JANE DOE",
		"cardNumber":  "4111111111111111",
		"expiry":      "04/27",
		"cvv":         "123",
		"bid":         "bid-1",
		"fb":          "fb.1.click",
		"userHash":    "user-1",
	})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestCheckout_Success(t *testing.T) {
	f := newServerFixture(t)
	f.gw.initOutcome = gateway.Outcome{Success: true, ReferenceCode: "sub-1"}

	req := httptest.NewRequest(http.MethodPost, "/pay", checkoutBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp["subscriptionReferenceCode"])
	assert.Equal(t, "Europe/Berlin", resp["timezone"])

	var count int64
	f.db.Model(&paymentdomain.PaymentRecord{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCheckout_Decline(t *testing.T) {
	f := newServerFixture(t)
	f.gw.initOutcome = gateway.Outcome{
		Success:      false,
		ErrorCode:    "NOT_SUFFICIENT_FUNDS",
		ErrorMessage: "Insufficient funds",
	}

	req := httptest.NewRequest(http.MethodPost, "/pay", checkoutBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_SUFFICIENT_FUNDS", resp["errorCode"])

	// No record is written for a declined checkout.
	var count int64
	f.db.Model(&paymentdomain.PaymentRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestCheckout_GatewayUnavailable(t *testing.T) {
	f := newServerFixture(t)
	f.gw.initErr = fmt.Errorf("dial tcp: connection refused")

	req := httptest.NewRequest(http.MethodPost, "/pay", checkoutBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCheckout_MissingFields(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/pay", bytes.NewReader([]byte(`{"plan":"solo"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentsByUserHash(t *testing.T) {
	f := newServerFixture(t)
	f.gw.initOutcome = gateway.Outcome{Success: true, ReferenceCode: "sub-1"}

	req := httptest.NewRequest(http.MethodPost, "/pay", checkoutBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/payments/user-1", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Payments []paymentdomain.PaymentRecord `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Payments, 1)
	assert.Equal(t, "plus", resp.Payments[0].Plan)
	// Card data never serializes.
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
}

func TestExportCSV(t *testing.T) {
	f := newServerFixture(t)
	f.gw.initOutcome = gateway.Outcome{Success: true, ReferenceCode: "sub-1"}

	req := httptest.NewRequest(http.MethodPost, "/pay", checkoutBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/payments/export.csv", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "bid-1", rows[1][2])
	assert.Equal(t, "fb.1.click", rows[1][3])
	assert.Equal(t, "plus", rows[1][4])
	assert.Equal(t, "true", rows[1][9])
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
