package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 60 * time.Second

// Config carries the gateway endpoint and credentials. Opaque to the
// rebill core; validated at startup.
type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Client talks to the subscription gateway over HTTP. Subscription
// creation uses basic auth; the operation endpoints (retry, cancel) use
// the gateway's HMAC-SHA256 v2 scheme.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("gateway"),
	}, nil
}

type subscribeRequest struct {
	ConversationID           string            `json:"conversationId"`
	Locale                   string            `json:"locale"`
	PricingPlanReferenceCode string            `json:"pricingPlanReferenceCode"`
	Subscriber               subscriberPayload `json:"subscriber"`
	PaymentCard              cardPayload       `json:"paymentCard"`
	BillingAddress           addressPayload    `json:"billingAddress"`
}

type subscriberPayload struct {
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	GsmNumber string `json:"gsmNumber"`
}

type cardPayload struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	CVC            string `json:"cvc"`
}

type addressPayload struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

type gatewayResponse struct {
	Status                string `json:"status"`
	ReferenceCode         string `json:"referenceCode"`
	CustomerReferenceCode string `json:"customerReferenceCode"`
	ErrorCode             string `json:"errorCode"`
	ErrorMessage          string `json:"errorMessage"`
	ErrorGroup            string `json:"errorGroup"`
	Data                  *struct {
		ReferenceCode         string `json:"referenceCode"`
		CustomerReferenceCode string `json:"customerReferenceCode"`
	} `json:"data"`
}

func (c *Client) InitializeSubscription(ctx context.Context, profile SubscriberProfile, planReferenceCode string) (Outcome, error) {
	locale := profile.Locale
	if locale == "" {
		locale = "en"
	}
	payload := subscribeRequest{
		ConversationID:           randomHex(8),
		Locale:                   locale,
		PricingPlanReferenceCode: planReferenceCode,
		Subscriber: subscriberPayload{
			Name:      profile.FirstName,
			Surname:   profile.LastName,
			Email:     profile.Email,
			GsmNumber: profile.Phone,
		},
		PaymentCard: cardPayload{
			CardHolderName: profile.CardHolder,
			CardNumber:     profile.CardNumber,
			ExpireMonth:    profile.ExpireMonth,
			ExpireYear:     profile.ExpireYear,
			CVC:            profile.CVC,
		},
		BillingAddress: addressPayload{
			ContactName: strings.TrimSpace(profile.FirstName + " " + profile.LastName),
			City:        profile.City,
			Country:     profile.CountryCode,
			Address:     profile.Address,
			ZipCode:     profile.PostalCode,
		},
	}

	req, err := c.newRequest(ctx, "/v2/subscription/subscribers", payload)
	if err != nil {
		return Outcome{}, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey + ":" + c.cfg.SecretKey))
	req.Header.Set("Authorization", "Basic "+basic)

	return c.do(req, "initialize_subscription")
}

func (c *Client) CancelSubscription(ctx context.Context, referenceCode string) (Outcome, error) {
	if strings.TrimSpace(referenceCode) == "" {
		return Outcome{}, ErrMissingReference
	}
	path := fmt.Sprintf("/v2/subscription/subscriptions/%s/cancel", referenceCode)
	payload := map[string]string{"subscriptionReferenceCode": referenceCode}
	req, err := c.newRequest(ctx, path, payload)
	if err != nil {
		return Outcome{}, err
	}
	c.signV2(req, path, payload)
	return c.do(req, "cancel_subscription")
}

func (c *Client) RetrySubscription(ctx context.Context, referenceCode string) (Outcome, error) {
	if strings.TrimSpace(referenceCode) == "" {
		return Outcome{}, ErrMissingReference
	}
	const path = "/operation/retry"
	payload := map[string]string{"referenceCode": referenceCode}
	req, err := c.newRequest(ctx, path, payload)
	if err != nil {
		return Outcome{}, err
	}
	c.signV2(req, path, payload)
	return c.do(req, "retry_subscription")
}

func (c *Client) newRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// signV2 applies the gateway's IYZWSv2 authorization: an HMAC-SHA256 of
// randomKey+path+body with the secret key, packed base64.
func (c *Client) signV2(req *http.Request, path string, payload any) {
	body, _ := json.Marshal(payload)
	randomKey := randomHex(8)

	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(randomKey + path + string(body)))
	signature := hex.EncodeToString(mac.Sum(nil))

	authRaw := fmt.Sprintf("apiKey:%s&randomKey:%s&signature:%s", c.cfg.APIKey, randomKey, signature)
	req.Header.Set("Authorization", "IYZWSv2 "+base64.StdEncoding.EncodeToString([]byte(authRaw)))
	req.Header.Set("x-iyzi-rnd", randomKey)
}

func (c *Client) do(req *http.Request, operation string) (Outcome, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: read response: %w", operation, err)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Outcome{}, fmt.Errorf("%s: decode response (http %d): %w", operation, resp.StatusCode, err)
	}

	outcome := Outcome{
		Success:               resp.StatusCode < 300 && strings.EqualFold(parsed.Status, "success"),
		ReferenceCode:         parsed.ReferenceCode,
		CustomerReferenceCode: parsed.CustomerReferenceCode,
		ErrorCode:             parsed.ErrorCode,
		ErrorMessage:          parsed.ErrorMessage,
		ErrorGroup:            parsed.ErrorGroup,
	}
	if parsed.Data != nil {
		if outcome.ReferenceCode == "" {
			outcome.ReferenceCode = parsed.Data.ReferenceCode
		}
		if outcome.CustomerReferenceCode == "" {
			outcome.CustomerReferenceCode = parsed.Data.CustomerReferenceCode
		}
	}

	if outcome.Success {
		c.log.Debug("gateway call succeeded",
			zap.String("operation", operation),
			zap.String("reference_code", outcome.ReferenceCode),
		)
	} else {
		c.log.Warn("gateway call declined",
			zap.String("operation", operation),
			zap.Int("http_status", resp.StatusCode),
			zap.String("error_code", outcome.ErrorCode),
			zap.String("error_group", outcome.ErrorGroup),
		)
	}
	return outcome, nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
