package server

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/subflowhq/rebill/internal/gateway"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"go.uber.org/zap"
)

// handleCheckout charges the first subscription period synchronously and
// persists the record only after the gateway accepted it. The scheduler is
// nudged so the new record's backfill does not wait for the next tick.
func (s *Server) handleCheckout(c *gin.Context) {
	var req paymentdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan := s.plans.Resolve(req.Plan)
	outcome, err := s.gateway.InitializeSubscription(c.Request.Context(), profileFromCheckout(req), plan.ReferenceCode)
	if err != nil {
		s.log.Error("checkout gateway call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		return
	}
	if !outcome.Success {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"errorCode":    outcome.ErrorCode,
			"errorMessage": outcome.ErrorMessage,
			"errorGroup":   outcome.ErrorGroup,
		})
		return
	}

	record, err := s.paymentSvc.CreateFromCheckout(c.Request.Context(), req, outcome.ReferenceCode)
	if err != nil {
		// The charge went through but the record did not persist. Unwind
		// the subscription so the customer is not billed invisibly.
		s.log.Error("persisting checkout failed, cancelling subscription",
			zap.String("subscription_reference_code", outcome.ReferenceCode),
			zap.Error(err),
		)
		if _, cancelErr := s.gateway.CancelSubscription(c.Request.Context(), outcome.ReferenceCode); cancelErr != nil {
			s.log.Error("cancel after failed persist also failed", zap.Error(cancelErr))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store payment"})
		return
	}

	s.scheduler.NotifyDBChanged()
	if s.notifier.Enabled() {
		s.notifier.PaymentCreated(record)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":                        record.ID.String(),
		"subscriptionReferenceCode": record.SubscriptionReferenceCode,
		"plan":                      record.Plan,
		"timezone":                  record.Timezone,
	})
}

func (s *Server) handlePaymentsByUserHash(c *gin.Context) {
	userHash := strings.TrimSpace(c.Param("userHash"))
	if userHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userHash is required"})
		return
	}
	records, err := s.paymentSvc.GetByUserHash(c.Request.Context(), userHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": records})
}

// handleExportCSV streams every record for the operator export. Card data
// never leaves the database here.
func (s *Server) handleExportCSV(c *gin.Context) {
	records, err := s.paymentSvc.Export(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="payments.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"id", "user_hash", "bid", "fb", "plan", "email", "country_code",
		"timezone", "subscription_reference_code", "is_recurring_active",
		"rebill_attempts", "next_recurring_at", "last_attempt_at", "created_at",
	})
	for _, r := range records {
		_ = w.Write(exportRow(r))
	}
	w.Flush()
}

func exportRow(r paymentdomain.PaymentRecord) []string {
	nextAt := ""
	if r.NextRecurringAt != nil {
		nextAt = r.NextRecurringAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	lastAt := ""
	if r.LastAttemptAt != nil {
		lastAt = r.LastAttemptAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return []string{
		r.ID.String(),
		r.UserHash,
		r.Bid,
		r.Fb,
		r.Plan,
		r.Email,
		r.CountryCode,
		r.Timezone,
		r.SubscriptionReferenceCode,
		strconv.FormatBool(r.IsRecurringActive),
		strconv.Itoa(r.RebillAttempts),
		nextAt,
		lastAt,
		r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func profileFromCheckout(req paymentdomain.CheckoutRequest) gateway.SubscriberProfile {
	expireMonth, expireYear := gateway.SplitExpiry(req.Expiry)
	return gateway.SubscriberProfile{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		PostalCode:  req.PostalCode,
		City:        req.City,
		CountryCode: req.CountryCode,
		Locale:      req.Locale,
		CardHolder:  req.CardHolder,
		CardNumber:  req.CardNumber,
		ExpireMonth: expireMonth,
		ExpireYear:  expireYear,
		CVC:         req.CVV,
	}
}
