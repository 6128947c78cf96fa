package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentRecord, error)
	FindByUserHash(ctx context.Context, db *gorm.DB, userHash string) ([]PaymentRecord, error)

	// FindDue returns active records whose NextRecurringAt lies in
	// (now-lookback, now], ordered by NextRecurringAt ascending, capped
	// at limit. Inactive records are never returned regardless of
	// timestamp.
	FindDue(ctx context.Context, db *gorm.DB, now time.Time, lookback time.Duration, limit int) ([]PaymentRecord, error)

	// FindMissingSchedule returns records with no NextRecurringAt, for
	// the one-time startup backfill.
	FindMissingSchedule(ctx context.Context, db *gorm.DB, limit int) ([]PaymentRecord, error)

	// UpdateAfterAttempt applies the attempt patch as one atomic write
	// keyed by record id.
	UpdateAfterAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, patch AttemptPatch) error

	// UpdateSchedule sets the resolved timezone and first NextRecurringAt
	// during backfill.
	UpdateSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID, tz string, nextAt time.Time) error

	// List returns all records ordered by creation time, newest first.
	// Used by the operator export.
	List(ctx context.Context, db *gorm.DB) ([]PaymentRecord, error)
}
