package service

import (
	"context"

	"storefront-order-service/internal/models"
	"storefront-order-service/internal/repository"

	"github.com/google/uuid"
)

// GetOrder returns the order with its items. Orders of other customers are
// reported as missing.
func (s *orderService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	id, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ord, err := s.loadByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() && !ord.IsOwnedBy(id.UserID) {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

func (s *orderService) ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	id, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() && id.UserID != userID {
		return nil, ErrForbidden
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	list, err := s.repo.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return list, nil
}

func clampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	}
	return limit
}

// ListRecentOrders returns the newest orders first plus the total count.
func (s *orderService) ListRecentOrders(ctx context.Context, limit int) ([]*models.Order, int64, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	list, total, err := s.repo.Orders.List(ctx, repository.OrderListFilter{
		Limit: clampLimit(limit, defaultRecentLimit, maxRecentLimit),
	})
	if err != nil {
		return nil, 0, mapStoreErr(err)
	}
	return list, total, nil
}

// ListAllCustomers aggregates orders per customer email.
func (s *orderService) ListAllCustomers(ctx context.Context, skip, limit int) ([]models.CustomerSummary, int64, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	if skip < 0 {
		skip = 0
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rows, total, err := s.repo.Orders.ListCustomers(ctx, skip, clampLimit(limit, defaultCustomersLimit, maxCustomersLimit))
	if err != nil {
		return nil, 0, mapStoreErr(err)
	}
	return rows, total, nil
}
