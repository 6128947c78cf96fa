package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/subflowhq/rebill/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (paymentdomain.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.PaymentRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return Provide(db, zap.NewNop(), repository.Provide(), node), db
}

func TestCreateFromCheckout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.CreateFromCheckout(ctx, paymentdomain.CheckoutRequest{
		Plan:        "plus",
		FirstName:   "Jane",
		LastName:    "Doe",
		CountryCode: "tr ",
		Email:       "jane@example.com",
		CardHolder:  "JANE DOE",
		CardNumber:  "4111111111111111",
		Expiry:      "04/27",
		CVV:         "123",
		Bid:         " bid-1 ",
		Fb:          "fb.1.click",
		UserHash:    " user-1 ",
	}, "sub-1")
	require.NoError(t, err)

	assert.NotZero(t, record.ID)
	assert.Equal(t, "TR", record.CountryCode)
	assert.Equal(t, "Europe/Istanbul", record.Timezone)
	assert.Equal(t, "user-1", record.UserHash)
	assert.Equal(t, "bid-1", record.Bid)
	assert.Equal(t, "fb.1.click", record.Fb)
	assert.Equal(t, "sub-1", record.SubscriptionReferenceCode)
	assert.True(t, record.IsRecurringActive)
	assert.Zero(t, record.RebillAttempts)
	// The schedule is assigned by the backfill job, not at checkout.
	assert.Nil(t, record.NextRecurringAt)
}

func TestGetByUserHashAndExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, hash := range []string{"a", "a", "b"} {
		_, err := svc.CreateFromCheckout(ctx, paymentdomain.CheckoutRequest{
			Plan:        "solo",
			FirstName:   "J",
			LastName:    "D",
			CountryCode: "US",
			Email:       "j@example.com",
			CardHolder:  "J D",
			CardNumber:  "4111111111111111",
			Expiry:      "04/27",
			CVV:         "123",
			UserHash:    hash,
		}, "sub-x")
		require.NoError(t, err)
	}

	mine, err := svc.GetByUserHash(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
