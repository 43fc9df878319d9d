package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelharbor/imageconvbackend/models"
)

var testLimits = Limits{Free: 5, Vip: 100, Svip: 1000}

func TestLimitsCeiling(t *testing.T) {
	assert.Equal(t, 5, testLimits.Ceiling(models.RoleFree))
	assert.Equal(t, 100, testLimits.Ceiling(models.RoleVip))
	assert.Equal(t, 1000, testLimits.Ceiling(models.RoleSvip))
	assert.Equal(t, 5, testLimits.Ceiling(models.Role("unknown")))
}

func TestMemoryLedgerEnforcesCeiling(t *testing.T) {
	ledger := NewMemoryLedger(testLimits)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		decision, err := ledger.CheckAndReserve(ctx, 1, models.RoleFree)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, i, decision.Used)
		assert.Equal(t, 5, decision.Ceiling)
	}

	decision, err := ledger.CheckAndReserve(ctx, 1, models.RoleFree)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 5, decision.Used)
	assert.NotEmpty(t, decision.Reason)

	used, err := ledger.UsageToday(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestMemoryLedgerIsolatesUsers(t *testing.T) {
	ledger := NewMemoryLedger(testLimits)
	ctx := context.Background()

	_, err := ledger.CheckAndReserve(ctx, 1, models.RoleFree)
	require.NoError(t, err)

	used, err := ledger.UsageToday(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestMemoryLedgerRelease(t *testing.T) {
	ledger := NewMemoryLedger(Limits{Free: 1})
	ctx := context.Background()

	decision, err := ledger.CheckAndReserve(ctx, 7, models.RoleFree)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = ledger.CheckAndReserve(ctx, 7, models.RoleFree)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	require.NoError(t, ledger.Release(ctx, 7))

	decision, err = ledger.CheckAndReserve(ctx, 7, models.RoleFree)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// releasing below zero must not create negative balances
	require.NoError(t, ledger.Release(ctx, 7))
	require.NoError(t, ledger.Release(ctx, 7))
	require.NoError(t, ledger.Release(ctx, 7))
	used, err := ledger.UsageToday(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestMemoryLedgerReset(t *testing.T) {
	ledger := NewMemoryLedger(testLimits)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.CheckAndReserve(ctx, 3, models.RoleFree)
		require.NoError(t, err)
	}
	require.NoError(t, ledger.Reset(ctx, 3))

	used, err := ledger.UsageToday(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestMemoryLedgerConcurrentReservations(t *testing.T) {
	ledger := NewMemoryLedger(Limits{Free: 10})
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := ledger.CheckAndReserve(ctx, 42, models.RoleFree)
			assert.NoError(t, err)
			if decision.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
	used, err := ledger.UsageToday(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 10, used)
}

func TestMemoryLedgerRollsOverAtMidnight(t *testing.T) {
	ledger := NewMemoryLedger(Limits{Free: 1})
	ctx := context.Background()

	current := time.Date(2024, 6, 1, 23, 50, 0, 0, time.Local)
	ledger.now = func() time.Time { return current }

	decision, err := ledger.CheckAndReserve(ctx, 9, models.RoleFree)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = ledger.CheckAndReserve(ctx, 9, models.RoleFree)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// a new calendar day gets a fresh counter
	current = current.Add(15 * time.Minute)
	decision, err = ledger.CheckAndReserve(ctx, 9, models.RoleFree)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Used)
}

func TestDayKeyAndTTL(t *testing.T) {
	at := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "quota:12:2024-06-01", dayKey(12, at))

	// one hour to midnight plus slack
	assert.Equal(t, 3660, secondsUntilMidnight(at))

	nearMidnight := time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC)
	assert.GreaterOrEqual(t, secondsUntilMidnight(nearMidnight), 60)
}
