package rebill

import (
	"context"
	"errors"

	"github.com/subflowhq/rebill/internal/schedule"
	"github.com/subflowhq/rebill/internal/timezone"
	"go.uber.org/zap"
)

// Scan selects records due inside the lookback window, oldest first,
// and runs one attempt for each. A single record's failure never aborts
// the rest of the pass. Returns the number of records attempted.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindDue(ctx, s.db, now, s.cfg.LookbackWindow, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	s.log.Info("due rebills found", zap.Int("count", len(due)))

	var scanErr error
	processed := 0
	for _, record := range due {
		if ctx.Err() != nil {
			scanErr = errors.Join(scanErr, ctx.Err())
			break
		}
		if err := s.executor.ExecuteAttempt(ctx, record); err != nil {
			scanErr = errors.Join(scanErr, err)
			s.log.Error("attempt result write failed",
				zap.String("record_id", record.ID.String()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, scanErr
}

// Backfill assigns a first NextRecurringAt to records that predate the
// scheduler: created-at plus the first-rebill offset, at the anchor time
// in the subscriber's resolved timezone. Runs once at startup.
func (s *Scheduler) Backfill(ctx context.Context) (int, error) {
	var jobErr error
	total := 0
	for {
		if ctx.Err() != nil {
			return total, errors.Join(jobErr, ctx.Err())
		}
		candidates, err := s.repo.FindMissingSchedule(ctx, s.db, s.cfg.BackfillBatchSize)
		if err != nil {
			return total, errors.Join(jobErr, err)
		}
		if len(candidates) == 0 {
			return total, jobErr
		}
		scheduled := 0
		for _, record := range candidates {
			tz := record.Timezone
			if tz == "" {
				tz = timezone.Resolve(record.CountryCode)
			}
			nextAt := schedule.NextAttemptIn(record.CreatedAt, tz, schedule.FirstRebillDays)
			if err := s.repo.UpdateSchedule(ctx, s.db, record.ID, tz, nextAt); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.log.Error("backfill update failed",
					zap.String("record_id", record.ID.String()),
					zap.Error(err),
				)
				continue
			}
			total++
			scheduled++
			s.log.Info("next recurring date assigned",
				zap.String("record_id", record.ID.String()),
				zap.String("timezone", tz),
				zap.Time("next_recurring_at", nextAt),
			)
		}
		// Failed updates stay in the candidate set; a full batch that
		// schedules nothing would otherwise be re-read forever.
		if scheduled == 0 || len(candidates) < s.cfg.BackfillBatchSize {
			return total, jobErr
		}
	}
}
