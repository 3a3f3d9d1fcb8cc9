package producer

import (
	"time"

	"storefront-order-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status.changed"
	EventPaymentStatusChanged = "order.payment.changed"
)

type OrderItemEvent struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type OrderCreatedEvent struct {
	OrderNumber   string           `json:"order_number"`
	UserID        *uuid.UUID       `json:"user_id,omitempty"`
	CustomerEmail string           `json:"customer_email"`
	Items         []OrderItemEvent `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod string           `json:"payment_method"`
	CreatedAt     time.Time        `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	OrderNumber string             `json:"order_number"`
	UserID      *uuid.UUID         `json:"user_id,omitempty"`
	From        models.OrderStatus `json:"from"`
	To          models.OrderStatus `json:"to"`
	Reason      string             `json:"reason,omitempty"`
	ChangedAt   time.Time          `json:"changed_at"`
}

type PaymentStatusChangedEvent struct {
	OrderNumber string               `json:"order_number"`
	From        models.PaymentStatus `json:"from"`
	To          models.PaymentStatus `json:"to"`
	Reference   *string              `json:"payment_reference,omitempty"`
	ChangedAt   time.Time            `json:"changed_at"`
}
