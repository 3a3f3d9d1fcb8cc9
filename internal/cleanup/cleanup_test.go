package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-order-service/internal/models"
	"storefront-order-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrders struct {
	repository.OrderRepo

	mu       sync.Mutex
	statuses []models.OrderStatus
	cutoffs  []time.Time
	err      error
}

func (f *fakeOrders) DeleteByStatusBefore(_ context.Context, statuses []models.OrderStatus, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

type fakeExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakeExpirer) ExpireStalePending(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 1, f.err
}

func (f *fakeExpirer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func newTestCleanup(orders *fakeOrders, exp *fakeExpirer, opt Options) *CleanupService {
	c := NewCleanupService(orders, exp, opt, zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestPurgeTerminalOrders(t *testing.T) {
	orders := &fakeOrders{}
	c := newTestCleanup(orders, &fakeExpirer{}, Options{RetentionDays: 30})

	require.NoError(t, c.PurgeTerminalOrders(context.Background()))
	require.Len(t, orders.cutoffs, 1)
	assert.Equal(t, time.Date(2025, 2, 12, 12, 0, 0, 0, time.UTC), orders.cutoffs[0])
	assert.ElementsMatch(t, []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusRefunded}, orders.statuses)
}

func TestPurgeTerminalOrders_Disabled(t *testing.T) {
	orders := &fakeOrders{}
	c := newTestCleanup(orders, &fakeExpirer{}, Options{})

	require.NoError(t, c.PurgeTerminalOrders(context.Background()))
	assert.Empty(t, orders.cutoffs)
}

func TestExpireStalePending(t *testing.T) {
	exp := &fakeExpirer{}
	c := newTestCleanup(&fakeOrders{}, exp, Options{PendingTTL: 48 * time.Hour})

	require.NoError(t, c.ExpireStalePending(context.Background()))
	require.Len(t, exp.cutoffs, 1)
	assert.Equal(t, time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC), exp.cutoffs[0])

	c.opt.PendingTTL = 0
	require.NoError(t, c.ExpireStalePending(context.Background()))
	assert.Len(t, exp.cutoffs, 1)
}

func TestRunFullCleanup_StopsOnError(t *testing.T) {
	orders := &fakeOrders{}
	exp := &fakeExpirer{err: errors.New("db down")}
	c := newTestCleanup(orders, exp, Options{RetentionDays: 7, PendingTTL: time.Hour})

	assert.Error(t, c.RunFullCleanup(context.Background()))
	assert.Empty(t, orders.cutoffs)

	exp.err = nil
	require.NoError(t, c.RunFullCleanup(context.Background()))
	assert.Len(t, orders.cutoffs, 1)
}

func TestScheduler_RunsExpiryOnStartAndStops(t *testing.T) {
	exp := &fakeExpirer{}
	c := newTestCleanup(&fakeOrders{}, exp, Options{PendingTTL: time.Hour})
	s := NewScheduler(c, Intervals{Expiry: 10 * time.Millisecond, Purge: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.Eventually(t, func() bool { return exp.calls() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	require.NoError(t, s.RunOnceNow(context.Background()))
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(newTestCleanup(&fakeOrders{}, &fakeExpirer{}, Options{}), Intervals{}, zap.NewNop())
	assert.Equal(t, DefaultIntervals(), s.intervals)
}
