package quota

import (
	"context"
	"sync"
	"time"

	"github.com/pixelharbor/imageconvbackend/models"
)

// MemoryLedger is an in-process ledger with the same semantics as the
// Redis one. Suitable for tests and single-node deployments without
// Redis; counters for past days are pruned lazily.
type MemoryLedger struct {
	mu     sync.Mutex
	counts map[string]int
	limits Limits
	now    func() time.Time
}

func NewMemoryLedger(limits Limits) *MemoryLedger {
	return &MemoryLedger{
		counts: make(map[string]int),
		limits: limits,
		now:    time.Now,
	}
}

func (l *MemoryLedger) CheckAndReserve(_ context.Context, userID uint, role models.Role) (Decision, error) {
	ceiling := l.limits.Ceiling(role)
	key := dayKey(userID, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.counts[key]
	if used >= ceiling {
		return Decision{Allowed: false, Used: used, Ceiling: ceiling, Reason: deniedReason(used, ceiling)}, nil
	}
	l.counts[key] = used + 1
	return Decision{Allowed: true, Used: used + 1, Ceiling: ceiling}, nil
}

func (l *MemoryLedger) Release(_ context.Context, userID uint) error {
	key := dayKey(userID, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[key] > 0 {
		l.counts[key]--
	}
	return nil
}

func (l *MemoryLedger) UsageToday(_ context.Context, userID uint) (int, error) {
	key := dayKey(userID, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counts[key], nil
}

func (l *MemoryLedger) Reset(_ context.Context, userID uint) error {
	key := dayKey(userID, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counts, key)
	return nil
}
