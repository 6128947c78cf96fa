package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifier_Enabled(t *testing.T) {
	n := NewNotifier(Config{}, zap.NewNop())
	assert.False(t, n.Enabled())

	n = NewNotifier(Config{BotToken: "tok", ChatID: "42"}, zap.NewNop())
	assert.True(t, n.Enabled())
}

func TestPaymentCreated_DeliversMessage(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]string
		_ = json.Unmarshal(raw, &payload)
		received <- payload
	}))
	defer srv.Close()

	n := NewNotifier(Config{BotToken: "tok", ChatID: "42", BaseURL: srv.URL}, zap.NewNop())
	node, _ := snowflake.NewNode(1)
	n.PaymentCreated(&paymentdomain.PaymentRecord{
		ID:          node.Generate(),
		Plan:        "plus",
		CountryCode: "DE",
		Email:       "jane@example.com",
	})

	select {
	case payload := <-received:
		assert.Equal(t, "42", payload["chat_id"])
		assert.Contains(t, payload["text"], "plan: plus")
		assert.Contains(t, payload["text"], "country: DE")
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestPaymentCreated_SkipsWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected delivery attempt")
	}))
	defer srv.Close()

	n := NewNotifier(Config{BaseURL: srv.URL}, zap.NewNop())
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	n.PaymentCreated(&paymentdomain.PaymentRecord{ID: node.Generate()})
	time.Sleep(50 * time.Millisecond)
}
