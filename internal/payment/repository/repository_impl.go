package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *paymentdomain.PaymentRecord) error {
	if record == nil || record.ID == 0 {
		return paymentdomain.ErrInvalidRecord
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.PaymentRecord, error) {
	var record paymentdomain.PaymentRecord
	err := db.WithContext(ctx).
		Where(`id = ?`, id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentdomain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindByUserHash(ctx context.Context, db *gorm.DB, userHash string) ([]paymentdomain.PaymentRecord, error) {
	var records []paymentdomain.PaymentRecord
	err := db.WithContext(ctx).
		Where(`user_hash = ?`, userHash).
		Order(`created_at DESC`).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, now time.Time, lookback time.Duration, limit int) ([]paymentdomain.PaymentRecord, error) {
	var records []paymentdomain.PaymentRecord
	windowStart := now.Add(-lookback)
	err := db.WithContext(ctx).
		Where(`is_recurring_active = ? AND next_recurring_at > ? AND next_recurring_at <= ?`, true, windowStart, now).
		Order(`next_recurring_at ASC`).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindMissingSchedule(ctx context.Context, db *gorm.DB, limit int) ([]paymentdomain.PaymentRecord, error) {
	var records []paymentdomain.PaymentRecord
	err := db.WithContext(ctx).
		Where(`next_recurring_at IS NULL AND is_recurring_active = ?`, true).
		Order(`created_at ASC`).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) UpdateAfterAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, patch paymentdomain.AttemptPatch) error {
	updates := map[string]any{
		"last_attempt_at":     patch.LastAttemptAt,
		"rebill_attempts":     patch.RebillAttempts,
		"next_recurring_at":   patch.NextRecurringAt,
		"is_recurring_active": patch.IsRecurringActive,
		"rebill_log":          patch.RebillLog,
		"updated_at":          patch.LastAttemptAt,
	}
	if patch.SubscriptionReferenceCode != nil {
		updates["subscription_reference_code"] = *patch.SubscriptionReferenceCode
	}
	result := db.WithContext(ctx).
		Model(&paymentdomain.PaymentRecord{}).
		Where(`id = ?`, id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return paymentdomain.ErrRecordNotFound
	}
	return nil
}

func (r *repo) UpdateSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID, tz string, nextAt time.Time) error {
	result := db.WithContext(ctx).
		Model(&paymentdomain.PaymentRecord{}).
		Where(`id = ?`, id).
		Updates(map[string]any{
			"timezone":          tz,
			"next_recurring_at": nextAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return paymentdomain.ErrRecordNotFound
	}
	return nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]paymentdomain.PaymentRecord, error) {
	var records []paymentdomain.PaymentRecord
	err := db.WithContext(ctx).
		Order(`created_at DESC`).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
