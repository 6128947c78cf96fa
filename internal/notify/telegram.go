// Package notify delivers fire-and-forget operator notifications when a
// checkout completes. Delivery failures are logged and dropped; the
// checkout path never blocks or fails on them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const telegramAPIBase = "https://api.telegram.org"

type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

type Notifier struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifier(cfg Config, log *zap.Logger) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPIBase
	}
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.Named("notify"),
	}
}

// Enabled reports whether a bot token and chat are configured. When not,
// notifications are recorded at debug level only.
func (n *Notifier) Enabled() bool {
	return n.cfg.BotToken != "" && n.cfg.ChatID != ""
}

// PaymentCreated announces a new subscription in the operator channel.
// Asynchronous: returns immediately, logs the delivery result.
func (n *Notifier) PaymentCreated(record *paymentdomain.PaymentRecord) {
	if !n.Enabled() {
		n.log.Debug("notification skipped, telegram not configured",
			zap.String("record_id", record.ID.String()),
		)
		return
	}
	text := fmt.Sprintf("New subscription\nplan: %s\ncountry: %s\nemail: %s\nbid: %s",
		record.Plan, record.CountryCode, record.Email, record.Bid)
	go n.send(record.ID.String(), text)
}

func (n *Notifier) send(recordID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, _ := json.Marshal(map[string]string{
		"chat_id": n.cfg.ChatID,
		"text":    text,
	})
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.BaseURL, n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.log.Warn("notification request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("notification delivery failed",
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn("notification rejected",
			zap.String("record_id", recordID),
			zap.Int("http_status", resp.StatusCode),
		)
		return
	}
	n.log.Debug("notification delivered", zap.String("record_id", recordID))
}

var Module = fx.Module("notify",
	fx.Provide(NewNotifier),
)
