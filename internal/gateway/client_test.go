package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:   baseURL,
		APIKey:    "api-key",
		SecretKey: "secret-key",
		Timeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func testProfile() SubscriberProfile {
	return SubscriberProfile{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		Phone:       "+15550100",
		Address:     "1 Main St",
		PostalCode:  "10001",
		City:        "New York",
		CountryCode: "US",
		CardHolder:  "JANE DOE",
		CardNumber:  "4111111111111111",
		ExpireMonth: "04",
		ExpireYear:  "2027",
		CVC:         "123",
	}
}

func TestSplitExpiry(t *testing.T) {
	month, year := SplitExpiry("04/27")
	assert.Equal(t, "04", month)
	assert.Equal(t, "2027", year)

	month, year = SplitExpiry("12/2030")
	assert.Equal(t, "12", month)
	assert.Equal(t, "2030", year)

	month, year = SplitExpiry(" 04/27 ")
	assert.Equal(t, "04", month)
	assert.Equal(t, "2027", year)

	month, year = SplitExpiry("garbage")
	assert.Equal(t, "garbage", month)
	assert.Equal(t, "", year)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestInitializeSubscription_BasicAuthAndPayload(t *testing.T) {
	var gotAuth string
	var gotBody subscribeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/subscription/subscribers", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"status":"success","data":{"referenceCode":"sub-1","customerReferenceCode":"cust-1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	outcome, err := c.InitializeSubscription(context.Background(), testProfile(), "plan-ref-1")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "sub-1", outcome.ReferenceCode)
	assert.Equal(t, "cust-1", outcome.CustomerReferenceCode)

	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("api-key:secret-key"))
	assert.Equal(t, expectedAuth, gotAuth)

	assert.Equal(t, "plan-ref-1", gotBody.PricingPlanReferenceCode)
	assert.Equal(t, "Jane", gotBody.Subscriber.Name)
	assert.Equal(t, "Doe", gotBody.Subscriber.Surname)
	assert.Equal(t, "4111111111111111", gotBody.PaymentCard.CardNumber)
	assert.Equal(t, "2027", gotBody.PaymentCard.ExpireYear)
	assert.Equal(t, "Jane Doe", gotBody.BillingAddress.ContactName)
	assert.Equal(t, "US", gotBody.BillingAddress.Country)
	assert.Equal(t, "en", gotBody.Locale)
}

func TestRetrySubscription_SignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/operation/retry", r.URL.Path)

		randomKey := r.Header.Get("x-iyzi-rnd")
		require.NotEmpty(t, randomKey)

		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte("secret-key"))
		mac.Write([]byte(randomKey + "/operation/retry" + string(body)))
		signature := hex.EncodeToString(mac.Sum(nil))
		expected := "IYZWSv2 " + base64.StdEncoding.EncodeToString(
			[]byte("apiKey:api-key&randomKey:"+randomKey+"&signature:"+signature))
		assert.Equal(t, expected, r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "sub-1", payload["referenceCode"])

		_, _ = w.Write([]byte(`{"status":"success","referenceCode":"sub-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	outcome, err := c.RetrySubscription(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "sub-1", outcome.ReferenceCode)
}

func TestRetrySubscription_EmptyReference(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")
	_, err := c.RetrySubscription(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestCancelSubscription_PathCarriesReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/subscription/subscriptions/sub-9/cancel", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "IYZWSv2 "))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	outcome, err := c.CancelSubscription(context.Background(), "sub-9")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestDo_DeclineIsOutcomeNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"failure","errorCode":"NOT_SUFFICIENT_FUNDS","errorMessage":"Insufficient funds","errorGroup":"NOT_SUFFICIENT_FUNDS"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	outcome, err := c.InitializeSubscription(context.Background(), testProfile(), "plan-ref-1")
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, "NOT_SUFFICIENT_FUNDS", outcome.ErrorCode)
	assert.Equal(t, "Insufficient funds", outcome.ErrorMessage)
	assert.Equal(t, "NOT_SUFFICIENT_FUNDS", outcome.ErrorGroup)
}

func TestDo_SuccessStatusRequiresSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"status":"success","referenceCode":"sub-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	outcome, err := c.RetrySubscription(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
}

func TestDo_TransportErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.RetrySubscription(context.Background(), "sub-1")
	assert.Error(t, err)
}
