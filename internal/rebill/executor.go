package rebill

import (
	"context"
	"strings"
	"time"

	"github.com/subflowhq/rebill/internal/clock"
	"github.com/subflowhq/rebill/internal/config"
	"github.com/subflowhq/rebill/internal/gateway"
	obsmetrics "github.com/subflowhq/rebill/internal/observability/metrics"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/subflowhq/rebill/internal/schedule"
	"github.com/subflowhq/rebill/internal/timezone"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Executor runs one rebill attempt for one subscriber: a cheap retry of
// the existing subscription reference first, then a full new-subscription
// fallback, then exactly one durable write of the classified outcome.
type Executor struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    paymentdomain.Repository
	gateway gateway.Adapter
	plans   *config.PlanCatalogHolder
	clock   clock.Clock
	timeout time.Duration
}

func NewExecutor(db *gorm.DB, log *zap.Logger, repo paymentdomain.Repository, gw gateway.Adapter, plans *config.PlanCatalogHolder, clk clock.Clock, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultConfig().AttemptTimeout
	}
	return &Executor{
		db:      db,
		log:     log.Named("executor"),
		repo:    repo,
		gateway: gw,
		plans:   plans,
		clock:   clk,
		timeout: timeout,
	}
}

// ExecuteAttempt performs the full attempt state machine for record and
// writes the result back. Every branch increments the attempt counter
// and stamps LastAttemptAt exactly once. Errors returned here are store
// write failures only; gateway failures are classified and recorded,
// never propagated.
func (e *Executor) ExecuteAttempt(ctx context.Context, record paymentdomain.PaymentRecord) error {
	now := e.clock.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log := e.log.With(
		zap.String("record_id", record.ID.String()),
		zap.String("plan", record.Plan),
	)

	outcome, stage, err := e.attempt(attemptCtx, &record)
	if err != nil {
		// Transport failure or timeout: we cannot classify, so retry
		// tomorrow rather than permanently disabling the subscriber.
		log.Warn("rebill attempt hit technical error", zap.Error(err))
		return e.record(ctx, &record, now, classification{
			status:  paymentdomain.AttemptStatusFailure,
			stage:   paymentdomain.StageTechnicalError,
			outcome: obsmetrics.OutcomeTechnicalError,
			next:    nextAt(e.nextRetry(now, &record)),
			active:  true,
			gwErr:   &paymentdomain.RebillError{Message: err.Error()},
		})
	}

	if outcome.Success {
		log.Info("rebill succeeded", zap.String("stage", stage))
		var newRef *string
		if ref := strings.TrimSpace(outcome.ReferenceCode); ref != "" {
			newRef = &ref
		}
		return e.record(ctx, &record, now, classification{
			status:  paymentdomain.AttemptStatusSuccess,
			stage:   stage,
			outcome: obsmetrics.OutcomeSuccess,
			next:    nextAt(e.nextSuccess(now, &record)),
			active:  true,
			newRef:  newRef,
		})
	}

	gwErr := &paymentdomain.RebillError{
		Code:    outcome.ErrorCode,
		Message: outcome.ErrorMessage,
		Group:   outcome.ErrorGroup,
	}
	if isInsufficientFunds(outcome) {
		log.Warn("rebill failed, insufficient funds, retrying tomorrow",
			zap.String("error_code", outcome.ErrorCode),
		)
		return e.record(ctx, &record, now, classification{
			status:  paymentdomain.AttemptStatusFailure,
			stage:   stage,
			outcome: obsmetrics.OutcomeRetryableFailure,
			next:    nextAt(e.nextRetry(now, &record)),
			active:  true,
			gwErr:   gwErr,
		})
	}

	log.Warn("rebill failed, disabling further attempts",
		zap.String("error_code", outcome.ErrorCode),
		zap.String("error_group", outcome.ErrorGroup),
	)
	return e.record(ctx, &record, now, classification{
		status:  paymentdomain.AttemptStatusFailure,
		stage:   stage,
		outcome: obsmetrics.OutcomeTerminalFailure,
		next:    nil,
		active:  false,
		gwErr:   gwErr,
	})
}

// attempt runs the gateway side of the state machine. A failed retry of
// the existing reference is never the attempt's outcome: it only routes
// to the new-subscription fallback.
func (e *Executor) attempt(ctx context.Context, record *paymentdomain.PaymentRecord) (gateway.Outcome, string, error) {
	if ref := strings.TrimSpace(record.SubscriptionReferenceCode); ref != "" {
		outcome, err := e.gateway.RetrySubscription(ctx, ref)
		if err == nil && outcome.Success {
			return outcome, paymentdomain.StageRetrySuccess, nil
		}
		if err != nil {
			e.log.Debug("subscription retry errored, falling back to new subscription",
				zap.String("record_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}

	plan := e.plans.Resolve(record.Plan)
	outcome, err := e.gateway.InitializeSubscription(ctx, buildProfile(record), plan.ReferenceCode)
	if err != nil {
		return gateway.Outcome{}, paymentdomain.StageTechnicalError, err
	}
	if outcome.Success {
		return outcome, paymentdomain.StageNewSubscriptionSuccess, nil
	}
	return outcome, paymentdomain.StageNewSubscriptionFailure, nil
}

type classification struct {
	status  paymentdomain.AttemptStatus
	stage   string
	outcome string
	next    *time.Time
	active  bool
	newRef  *string
	gwErr   *paymentdomain.RebillError
}

func (e *Executor) record(ctx context.Context, record *paymentdomain.PaymentRecord, now time.Time, c classification) error {
	entry := paymentdomain.RebillLogEntry{
		Status: c.status,
		Stage:  c.stage,
		At:     now,
		Error:  c.gwErr,
	}
	if err := record.AppendLogEntry(entry); err != nil {
		return err
	}

	obsmetrics.Scheduler().IncAttemptOutcome(c.outcome)

	patch := paymentdomain.AttemptPatch{
		SubscriptionReferenceCode: c.newRef,
		LastAttemptAt:             now,
		RebillAttempts:            record.RebillAttempts + 1,
		NextRecurringAt:           c.next,
		IsRecurringActive:         c.active,
		RebillLog:                 record.RebillLog,
	}
	return e.repo.UpdateAfterAttempt(ctx, e.db, record.ID, patch)
}

func (e *Executor) nextSuccess(now time.Time, record *paymentdomain.PaymentRecord) time.Time {
	return schedule.NextAttemptIn(now, recordTimezone(record), schedule.SuccessDays)
}

func (e *Executor) nextRetry(now time.Time, record *paymentdomain.PaymentRecord) time.Time {
	return schedule.NextAttemptIn(now, recordTimezone(record), schedule.RetryDays)
}

func recordTimezone(record *paymentdomain.PaymentRecord) string {
	if record.Timezone != "" {
		return record.Timezone
	}
	return timezone.Resolve(record.CountryCode)
}

// isInsufficientFunds matches the gateway's insufficient-funds decline
// by case-insensitive substring on either the error code or message.
func isInsufficientFunds(outcome gateway.Outcome) bool {
	code := strings.ToLower(outcome.ErrorCode)
	msg := strings.ToLower(outcome.ErrorMessage)
	return strings.Contains(code, "insufficient") || strings.Contains(msg, "insufficient")
}

func buildProfile(record *paymentdomain.PaymentRecord) gateway.SubscriberProfile {
	expireMonth, expireYear := gateway.SplitExpiry(record.Expiry)
	return gateway.SubscriberProfile{
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		Email:       record.Email,
		Phone:       record.Phone,
		Address:     record.Address,
		PostalCode:  record.PostalCode,
		City:        record.City,
		CountryCode: record.CountryCode,
		Locale:      record.Locale,
		CardHolder:  record.CardHolder,
		CardNumber:  record.CardNumber,
		ExpireMonth: expireMonth,
		ExpireYear:  expireYear,
		CVC:         record.CVV,
	}
}

func nextAt(t time.Time) *time.Time {
	return &t
}
