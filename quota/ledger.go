// Package quota enforces per-user, per-calendar-day conversion
// ceilings. The ledger is the only writer of usage counters; the
// permission gate in the conversion service reads through it.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelharbor/imageconvbackend/models"
)

// Limits holds the daily ceiling for each role tier.
type Limits struct {
	Free int
	Vip  int
	Svip int
}

// Ceiling returns the daily conversion ceiling for a role. unknown
// roles get the free tier.
func (l Limits) Ceiling(role models.Role) int {
	switch role {
	case models.RoleVip:
		return l.Vip
	case models.RoleSvip:
		return l.Svip
	default:
		return l.Free
	}
}

// Decision is the outcome of a reservation attempt.
type Decision struct {
	Allowed bool
	Used    int // usage today including this reservation when allowed
	Ceiling int
	Reason  string // human-readable, set when denied
}

// Ledger is the per-user, per-day usage counter. CheckAndReserve must
// be atomic per (user, day): two concurrent calls must never both be
// admitted past the last remaining slot.
type Ledger interface {
	// CheckAndReserve consumes one slot if the user is under their
	// ceiling, or denies with a reason.
	CheckAndReserve(ctx context.Context, userID uint, role models.Role) (Decision, error)
	// Release refunds one previously reserved slot (failed-conversion
	// refund policy, administrative corrections).
	Release(ctx context.Context, userID uint) error
	// UsageToday returns the user's consumed slots for the current day.
	UsageToday(ctx context.Context, userID uint) (int, error)
	// Reset clears the user's counter for the current day.
	Reset(ctx context.Context, userID uint) error
}

// dayKey identifies the wall-clock calendar day a counter belongs to.
// ceilings reset at local midnight, not on a rolling 24h window.
func dayKey(userID uint, now time.Time) string {
	return fmt.Sprintf("quota:%d:%s", userID, now.Format("2006-01-02"))
}

// secondsUntilMidnight is the TTL applied to a freshly created day
// counter, with a small slack so a counter never outlives its day by
// much nor expires early.
func secondsUntilMidnight(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	secs := int(midnight.Sub(now).Seconds()) + 60
	if secs < 60 {
		secs = 60
	}
	return secs
}

func deniedReason(used, ceiling int) string {
	return fmt.Sprintf("daily conversion limit reached (%d/%d), upgrade your plan or try again tomorrow", used, ceiling)
}
