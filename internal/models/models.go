package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address хранится встраиваемыми колонками с префиксом shipping_ / billing_
type Address struct {
	Line1      string  `gorm:"type:varchar(255)" json:"line1" validate:"required,max=255"`
	Line2      *string `gorm:"type:varchar(255)" json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string  `gorm:"type:varchar(100)" json:"city" validate:"required,max=100"`
	PostalCode string  `gorm:"type:varchar(20)" json:"postal_code" validate:"required,max=20"`
	Country    string  `gorm:"type:varchar(100)" json:"country" validate:"required,max=100"`
}

// IsZero reports whether no address line was captured.
func (a Address) IsZero() bool {
	return a.Line1 == "" && a.City == "" && a.PostalCode == "" && a.Country == ""
}

type Order struct {
	// internal key, never leaves the service
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderNumber string     `gorm:"type:varchar(50);not null;uniqueIndex:ux_orders_order_number" json:"order_number"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // nil для гостевого заказа

	CustomerEmail     string  `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	CustomerFirstName string  `gorm:"type:varchar(100);not null" json:"customer_first_name"`
	CustomerLastName  string  `gorm:"type:varchar(100);not null" json:"customer_last_name"`
	CustomerPhone     *string `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`

	ShippingAddress       Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingSameAsShipping bool    `gorm:"not null;default:true" json:"billing_same_as_shipping"`
	BillingAddress        Address `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingCost   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"shipping_cost"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`

	Status           OrderStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus    PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentMethod    string        `gorm:"type:varchar(50);not null" json:"payment_method"`
	PaymentReference *string       `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`

	ShippingMethod *string    `gorm:"type:varchar(50)" json:"shipping_method,omitempty"`
	TrackingNumber *string    `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`

	CustomerNotes *string `gorm:"type:text" json:"customer_notes,omitempty"`
	AdminNotes    *string `gorm:"type:text" json:"admin_notes,omitempty"`

	// optimistic lock, bumped on every mutation
	Version int64 `gorm:"not null;default:1" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string { return "orders" }

// CustomerName is the display name used by admin listings.
func (o *Order) CustomerName() string {
	return o.CustomerFirstName + " " + o.CustomerLastName
}

// IsOwnedBy is false for guest orders.
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID != nil && *o.UserID == userID
}

// OrderItem is a snapshot of a product at purchase time. ProductID is a
// plain reference: catalog edits and deletions never touch placed orders.
type OrderItem struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID     uint64          `gorm:"not null;index" json:"-"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductSKU  *string         `gorm:"type:varchar(100)" json:"product_sku,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity    int32           `gorm:"type:int;not null" json:"quantity"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// Product: локальная копия каталога: цена, активность и остаток
type Product struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SKU               *string         `gorm:"type:varchar(100);uniqueIndex:ux_products_sku"`
	Name              string          `gorm:"type:varchar(255);not null"`
	Price             decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsActive          bool            `gorm:"not null;default:true"`
	TrackInventory    bool            `gorm:"not null;default:true"`
	AllowBackorder    bool            `gorm:"not null;default:false"`
	InventoryQuantity int32           `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Product) TableName() string { return "products" }

// CustomerSummary is a read model aggregated from order snapshots.
type CustomerSummary struct {
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	OrdersCount int64           `json:"orders_count"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	FirstOrder  time.Time       `json:"first_order_at"`
	LastOrder   time.Time       `json:"last_order_at"`
}
