package repository

import (
	"context"
	"errors"
	"time"

	"storefront-order-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderListFilter struct {
	UserID *uuid.UUID
	Limit  int
	Offset int
}

type OrderRepo interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	// UpdateWithVersion applies fields only if the row still carries version
	// and bumps it. false means another writer got there first.
	UpdateWithVersion(ctx context.Context, id uint64, version int64, fields map[string]any) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	List(ctx context.Context, f OrderListFilter) ([]*models.Order, int64, error)
	ListCustomers(ctx context.Context, offset, limit int) ([]models.CustomerSummary, int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Order, error)
	Delete(ctx context.Context, id uint64) (bool, error)
	DeleteByStatusBefore(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) (int64, error)
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) OrderRepo { return &orderRepo{db: db} }

// Create inserts the order row only; items go through OrderItemRepo.BulkCreate.
func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	var ord models.Order
	err := r.db.WithContext(ctx).Preload("Items", itemsInOrder).First(&ord, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &ord, err
}

func (r *orderRepo) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var ord models.Order
	err := r.db.WithContext(ctx).Preload("Items", itemsInOrder).First(&ord, "order_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &ord, err
}

func (r *orderRepo) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("order_number = ?", number).Count(&cnt).Error
	return cnt > 0, err
}

func (r *orderRepo) UpdateWithVersion(ctx context.Context, id uint64, version int64, fields map[string]any) (bool, error) {
	upd := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		upd[k] = v
	}
	upd["version"] = gorm.Expr("version + 1")

	tx := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND version = ?", id, version).
		Updates(upd)
	return tx.RowsAffected > 0, tx.Error
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	var list []*models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Preload("Items", itemsInOrder).
		Find(&list).Error
	return list, err
}

func (r *orderRepo) List(ctx context.Context, f OrderListFilter) ([]*models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}

	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []*models.Order
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Preload("Items", itemsInOrder).Find(&list).Error
	return list, total, err
}

// ListCustomers groups orders by normalized email. Name and user id come
// from the most recent order; cancelled and refunded orders do not count
// towards total spent.
func (r *orderRepo) ListCustomers(ctx context.Context, offset, limit int) ([]models.CustomerSummary, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(DISTINCT lower(customer_email))").
		Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.CustomerSummary
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select(`lower(customer_email) AS email,
  (array_agg(customer_first_name ORDER BY created_at DESC))[1] AS first_name,
  (array_agg(customer_last_name ORDER BY created_at DESC))[1] AS last_name,
  (array_agg(user_id ORDER BY created_at DESC) FILTER (WHERE user_id IS NOT NULL))[1] AS user_id,
  COUNT(*) AS orders_count,
  COALESCE(SUM(total_amount) FILTER (WHERE status NOT IN ('cancelled','refunded')), 0) AS total_spent,
  MIN(created_at) AS first_order,
  MAX(created_at) AS last_order`).
		Group("lower(customer_email)").
		Order("last_order DESC, email ASC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	return rows, total, err
}

func (r *orderRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []*models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status IN ? AND created_at < ?",
			models.OrderStatusPending,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusFailed},
			createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *orderRepo) Delete(ctx context.Context, id uint64) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	return tx.RowsAffected > 0, tx.Error
}

// DeleteByStatusBefore removes orders untouched since cutoff; items cascade.
func (r *orderRepo) DeleteByStatusBefore(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, cutoff).
		Delete(&models.Order{})
	return tx.RowsAffected, tx.Error
}

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}
