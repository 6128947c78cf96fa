// Package schedule computes when the next rebill attempt for a
// subscriber is due. Attempts are anchored to a fixed local wall-clock
// time in the subscriber's timezone so charges land late in their
// evening regardless of UTC offset or DST.
package schedule

import (
	"time"

	"github.com/subflowhq/rebill/internal/timezone"
)

// Rebill policy offsets, in calendar days.
const (
	FirstRebillDays = 7 // initial trial -> first recurring attempt
	SuccessDays     = 7 // successful rebill -> next rebill
	RetryDays       = 1 // insufficient funds / technical error -> retry
)

// Attempts fire at 23:30 local time.
const (
	anchorHour   = 23
	anchorMinute = 30
)

// NextAttempt converts anchor into loc, adds daysOffset calendar days
// and pins the wall clock to 23:30:00.000 local. The returned instant is
// in UTC. time.Date normalizes across DST transitions, so the local time
// is 23:30 even when the day gained or lost an hour.
func NextAttempt(anchor time.Time, loc *time.Location, daysOffset int) time.Time {
	local := anchor.In(loc).AddDate(0, 0, daysOffset)
	return time.Date(local.Year(), local.Month(), local.Day(), anchorHour, anchorMinute, 0, 0, loc).UTC()
}

// NextAttemptIn is NextAttempt keyed by timezone id. Unknown ids degrade
// to UTC via timezone.Location; the table itself is validated at boot.
func NextAttemptIn(anchor time.Time, tz string, daysOffset int) time.Time {
	return NextAttempt(anchor, timezone.Location(tz), daysOffset)
}
