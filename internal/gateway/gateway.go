// Package gateway wraps the external subscription gateway. The rebill
// core only depends on the success/failure contract here, never on the
// wire format.
package gateway

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("gateway credentials not configured")
	ErrMissingReference   = errors.New("subscription reference code is empty")
)

// Outcome is the uniform result of a gateway operation. Success carries
// the (new) subscription reference; failure carries the gateway's error
// classification when it provided one. Transport-level problems are
// returned as errors, not outcomes.
type Outcome struct {
	Success               bool
	ReferenceCode         string
	CustomerReferenceCode string
	ErrorCode             string
	ErrorMessage          string
	ErrorGroup            string
}

// SubscriberProfile is the full subscription request rebuilt from a
// stored payment record. Card data is replayed as received at checkout.
type SubscriberProfile struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Address     string
	PostalCode  string
	City        string
	CountryCode string
	Locale      string

	CardHolder  string
	CardNumber  string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

// SplitExpiry turns the checkout "MM/YY" form into the gateway's month
// and four-digit year fields. Inputs without a slash pass through as the
// month with an empty year.
func SplitExpiry(expiry string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(expiry), "/", 2)
	if len(parts) != 2 {
		return expiry, ""
	}
	year := parts[1]
	if len(year) == 2 {
		year = "20" + year
	}
	return parts[0], year
}

type Adapter interface {
	// InitializeSubscription creates a new subscription (and charges the
	// first period) for the given pricing plan.
	InitializeSubscription(ctx context.Context, profile SubscriberProfile, planReferenceCode string) (Outcome, error)

	// CancelSubscription cancels an active subscription. Used by the
	// checkout flow when unwinding a double subscription, not by the
	// rebill path.
	CancelSubscription(ctx context.Context, referenceCode string) (Outcome, error)

	// RetrySubscription reattempts the charge on an existing
	// subscription reference. This is the cheap first-choice recurring
	// mechanism.
	RetrySubscription(ctx context.Context, referenceCode string) (Outcome, error)
}
