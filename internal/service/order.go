package service

import (
	"context"
	"time"

	"storefront-order-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
	// Price is what the client saw; nil when not submitted.
	Price *decimal.Decimal
}

type CustomerInfo struct {
	Email     string  `validate:"required,email,max=255"`
	FirstName string  `validate:"required,max=100"`
	LastName  string  `validate:"required,max=100"`
	Phone     *string `validate:"omitempty,max=50"`
}

// CreateOrderInput is validated with struct tags after normalization;
// items are checked against the catalog by LineItemValidator.
type CreateOrderInput struct {
	Customer              CustomerInfo
	ShippingAddress       models.Address
	BillingSameAsShipping bool
	BillingAddress        *models.Address   `validate:"required_if=BillingSameAsShipping false"`
	Items                 []CreateOrderItem `validate:"-"`
	Charges               Charges           `validate:"-"`
	ClientTotal           *decimal.Decimal  `validate:"-"`
	PaymentMethod         string            `validate:"required,max=50"`
	ShippingMethod        *string           `validate:"omitempty,max=50"`
	CustomerNotes         *string           `validate:"omitempty,max=2000"`
	IdempotencyKey        string            `validate:"max=128"`
}

type UpdateStatusInput struct {
	OrderNumber    string
	Status         models.OrderStatus
	Override       bool
	TrackingNumber *string
	Note           *string
}

type UpdatePaymentInput struct {
	OrderNumber string
	Status      models.PaymentStatus
	Reference   *string
}

type UpdateFulfillmentInput struct {
	OrderNumber    string
	TrackingNumber *string
	ShippingMethod *string
	AdminNotes     *string
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]*models.Order, int64, error)
	ListAllCustomers(ctx context.Context, skip, limit int) ([]models.CustomerSummary, int64, error)

	UpdateOrderStatus(ctx context.Context, in UpdateStatusInput) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, in UpdatePaymentInput) (*models.Order, error)
	UpdateFulfillment(ctx context.Context, in UpdateFulfillmentInput) (*models.Order, error)
	CancelOrder(ctx context.Context, orderNumber string, reason *string) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderNumber string) error

	// ExpireStalePending cancels unpaid pending orders created before cutoff.
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type Options struct {
	OrderNumberPrefix      string
	OrderNumberMaxAttempts int
	PricePolicy            PricePolicy
	Transitions            TransitionPolicy
	GuestCheckout          bool
	ReserveStock           bool
	DefaultCountry         string
	StoreTimeout           time.Duration
	MaxConflictRetries     int
	IdempotencyTTL         time.Duration
}

func DefaultOptions() Options {
	return Options{
		OrderNumberPrefix:      DefaultOrderNumberPrefix,
		OrderNumberMaxAttempts: 5,
		PricePolicy:            PricePolicyStrict,
		Transitions:            DefaultTransitionPolicy(),
		DefaultCountry:         "Deutschland",
		StoreTimeout:           5 * time.Second,
		MaxConflictRetries:     3,
		IdempotencyTTL:         24 * time.Hour,
	}
}

const (
	defaultRecentLimit    = 20
	maxRecentLimit        = 100
	defaultCustomersLimit = 50
	maxCustomersLimit     = 200
)
