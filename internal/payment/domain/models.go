// Package domain contains persistence models and contracts for
// subscriber payment records and their rebill scheduling state.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AttemptStatus is the recorded outcome of one rebill attempt.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailure AttemptStatus = "failure"
)

// Attempt stages, recorded in the rebill log. A failed retry of an
// existing subscription reference is never a stage of its own: it only
// triggers the new-subscription fallback.
const (
	StageRetrySuccess           = "retry-success"
	StageNewSubscriptionSuccess = "new-subscription-success"
	StageNewSubscriptionFailure = "new-subscription-failure"
	StageTechnicalError         = "technical-error"
)

// PaymentRecord captures one subscription lifecycle: the subscriber
// profile and billing instrument as received at checkout, the gateway
// linkage, and the scheduling state mutated on every rebill attempt.
// Records are never hard-deleted; a terminally failed record stays
// queryable for export with IsRecurringActive=false.
type PaymentRecord struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	UserHash string       `json:"user_hash" gorm:"type:text;index"`
	Bid      string       `json:"bid" gorm:"type:text"`
	Fb       string       `json:"fb" gorm:"type:text"`
	Plan     string       `json:"plan" gorm:"type:text;not null"`

	FirstName   string `json:"first_name" gorm:"type:text"`
	LastName    string `json:"last_name" gorm:"type:text"`
	Address     string `json:"address" gorm:"type:text"`
	PostalCode  string `json:"postal_code" gorm:"type:text"`
	City        string `json:"city" gorm:"type:text"`
	CountryCode string `json:"country_code" gorm:"type:text"`
	Email       string `json:"email" gorm:"type:text"`
	Phone       string `json:"phone" gorm:"type:text"`
	Locale      string `json:"locale" gorm:"type:text"`

	CardHolder string `json:"-" gorm:"type:text"`
	CardNumber string `json:"-" gorm:"type:text"`
	Expiry     string `json:"-" gorm:"type:text"`
	CVV        string `json:"-" gorm:"type:text"`

	SubscriptionReferenceCode string `json:"subscription_reference_code" gorm:"type:text"`

	Timezone        string     `json:"timezone" gorm:"type:text"`
	NextRecurringAt *time.Time `json:"next_recurring_at" gorm:"index"`
	// No column default here: gorm drops zero-valued fields that carry
	// one on Create, which would turn an inserted false back into true.
	// Creators set the flag explicitly.
	IsRecurringActive bool           `json:"is_recurring_active" gorm:"not null"`
	RebillAttempts    int            `json:"rebill_attempts" gorm:"not null;default:0"`
	LastAttemptAt     *time.Time     `json:"last_attempt_at"`
	RebillLog         datatypes.JSON `json:"rebill_log" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// RebillLogEntry is one element of the append-only rebill log.
type RebillLogEntry struct {
	Status AttemptStatus `json:"status"`
	Stage  string        `json:"stage"`
	At     time.Time     `json:"at"`
	Error  *RebillError  `json:"error,omitempty"`
}

// RebillError is the gateway error descriptor attached to failed entries.
type RebillError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Group   string `json:"group,omitempty"`
}

// LogEntries decodes the record's rebill log. An empty or absent column
// decodes to an empty slice.
func (p *PaymentRecord) LogEntries() ([]RebillLogEntry, error) {
	if len(p.RebillLog) == 0 {
		return nil, nil
	}
	var entries []RebillLogEntry
	if err := json.Unmarshal(p.RebillLog, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendLogEntry re-encodes the log with entry appended. The log is
// append-only: attempts never rewrite history.
func (p *PaymentRecord) AppendLogEntry(entry RebillLogEntry) error {
	entries, err := p.LogEntries()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(append(entries, entry))
	if err != nil {
		return err
	}
	p.RebillLog = raw
	return nil
}

// AttemptPatch is the single atomic write applied to a record after one
// rebill attempt. RebillAttempts carries the absolute post-attempt value
// computed from the record read at the start of the attempt; records are
// never processed concurrently by more than one executor invocation
// within a pass, so no relative increment is needed.
type AttemptPatch struct {
	SubscriptionReferenceCode *string
	LastAttemptAt             time.Time
	RebillAttempts            int
	NextRecurringAt           *time.Time
	IsRecurringActive         bool
	RebillLog                 datatypes.JSON
}
