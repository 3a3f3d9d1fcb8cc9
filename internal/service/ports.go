package service

import (
	"context"
	"time"

	"storefront-order-service/internal/producer"
	"storefront-order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxRunner opens a transaction scoped repository set. *repository.Repository
// implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *repository.Repository) error) error
}

// CatalogProduct is what the catalog says about a product right now.
type CatalogProduct struct {
	ID             uuid.UUID
	Name           string
	SKU            *string
	Price          decimal.Decimal
	Active         bool
	TrackInventory bool
	AllowBackorder bool
	Available      int32
}

// Catalog resolves products by id. Unknown ids are simply absent from the map.
type Catalog interface {
	LookupProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]CatalogProduct, error)
}

// EventBus publishes domain events after commit; nil disables publishing.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, e producer.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, e producer.OrderStatusChangedEvent) error
	PublishPaymentStatusChanged(ctx context.Context, e producer.PaymentStatusChangedEvent) error
}

type EmailProducer interface {
	SendEmail(ctx context.Context, key string, msg producer.EmailMessage) error
}

// IdempotencyStore remembers which order a client request key produced.
type IdempotencyStore interface {
	// Reserve claims key. When someone already holds it, reserved is false and
	// orderNumber is empty while the first request is still running.
	Reserve(ctx context.Context, key string, ttl time.Duration) (orderNumber string, reserved bool, err error)
	Complete(ctx context.Context, key, orderNumber string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
