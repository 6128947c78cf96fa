package domain

import (
	"context"
)

// CheckoutRequest is the subscriber/card payload collected by the
// checkout form. Card fields are stored as received and replayed
// unmodified on every rebill attempt.
type CheckoutRequest struct {
	Plan        string `json:"plan" binding:"required"`
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	CardHolder  string `json:"cardHolder" binding:"required"`
	CardNumber  string `json:"cardNumber" binding:"required"`
	Expiry      string `json:"expiry" binding:"required"`
	CVV         string `json:"cvv" binding:"required"`
	Bid         string `json:"bid"`
	Fb          string `json:"fb"`
	UserHash    string `json:"userHash"`
	Locale      string `json:"locale"`
}

type Service interface {
	// CreateFromCheckout persists a new payment record after a
	// successful initial charge. The subscriber's timezone is resolved
	// from the country code once, here, and is stable thereafter.
	CreateFromCheckout(ctx context.Context, req CheckoutRequest, subscriptionReferenceCode string) (*PaymentRecord, error)

	GetByUserHash(ctx context.Context, userHash string) ([]PaymentRecord, error)

	// Export returns all records for the operator CSV export.
	Export(ctx context.Context) ([]PaymentRecord, error)
}
