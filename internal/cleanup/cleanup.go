package cleanup

import (
	"context"
	"time"

	"storefront-order-service/internal/models"
	"storefront-order-service/internal/repository"

	"go.uber.org/zap"
)

// PendingExpirer cancels unpaid orders that were never confirmed.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type Options struct {
	// RetentionDays keeps terminal orders this long after their last update.
	// Zero disables the purge.
	RetentionDays int
	// PendingTTL is how long an unpaid pending order may wait. Zero disables
	// expiry.
	PendingTTL time.Duration
}

type CleanupService struct {
	orders  repository.OrderRepo
	expirer PendingExpirer
	opt     Options
	log     *zap.Logger
	now     func() time.Time
}

func NewCleanupService(orders repository.OrderRepo, expirer PendingExpirer, opt Options, log *zap.Logger) *CleanupService {
	return &CleanupService{
		orders:  orders,
		expirer: expirer,
		opt:     opt,
		log:     log,
		now:     time.Now,
	}
}

var purgeableStatuses = []models.OrderStatus{
	models.OrderStatusCancelled,
	models.OrderStatusRefunded,
}

// PurgeTerminalOrders удаляет отменённые и возвращённые заказы старше срока хранения
func (c *CleanupService) PurgeTerminalOrders(ctx context.Context) error {
	if c.opt.RetentionDays <= 0 {
		c.log.Debug("retention purge disabled")
		return nil
	}
	cutoff := c.now().AddDate(0, 0, -c.opt.RetentionDays)

	n, err := c.orders.DeleteByStatusBefore(ctx, purgeableStatuses, cutoff)
	if err != nil {
		c.log.Error("failed to purge terminal orders", zap.Error(err))
		return err
	}
	if n > 0 {
		c.log.Info("purged terminal orders", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return nil
}

// ExpireStalePending отменяет неоплаченные заказы, висящие в pending дольше PendingTTL
func (c *CleanupService) ExpireStalePending(ctx context.Context) error {
	if c.opt.PendingTTL <= 0 || c.expirer == nil {
		c.log.Debug("pending expiry disabled")
		return nil
	}
	cutoff := c.now().Add(-c.opt.PendingTTL)

	n, err := c.expirer.ExpireStalePending(ctx, cutoff)
	if err != nil {
		c.log.Error("failed to expire stale pending orders", zap.Error(err))
		return err
	}
	if n > 0 {
		c.log.Info("cancelled stale pending orders", zap.Int("count", n))
	}
	return nil
}

// RunFullCleanup выполняет все задачи очистки
func (c *CleanupService) RunFullCleanup(ctx context.Context) error {
	c.log.Info("starting full cleanup")

	if err := c.ExpireStalePending(ctx); err != nil {
		return err
	}

	if err := c.PurgeTerminalOrders(ctx); err != nil {
		return err
	}

	c.log.Info("full cleanup completed")
	return nil
}
