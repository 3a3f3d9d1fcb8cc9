package dto

import (
	"encoding/json"
	"time"

	"storefront-order-service/internal/models"

	"github.com/shopspring/decimal"
)

type AddressDTO struct {
	Line1      string  `json:"line1" example:"Hauptstraße 1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" example:"Berlin"`
	PostalCode string  `json:"postal_code" example:"10115"`
	Country    string  `json:"country,omitempty" example:"Deutschland"`
}

func (a AddressDTO) ToModel() models.Address {
	return models.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func addressFromModel(a models.Address) AddressDTO {
	return AddressDTO{Line1: a.Line1, Line2: a.Line2, City: a.City, PostalCode: a.PostalCode, Country: a.Country}
}

type CustomerDTO struct {
	Email     string  `json:"email" example:"anna@example.com"`
	FirstName string  `json:"first_name" example:"Anna"`
	LastName  string  `json:"last_name" example:"Schmidt"`
	Phone     *string `json:"phone,omitempty"`
}

type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required" example:"6f1c2b9e-5b7a-4c1e-9a52-3f0d8b7c1a11"`
	// Quantity принимается как число; дробные значения отклоняются
	Quantity json.Number     `json:"quantity" swaggertype:"integer" example:"2"`
	Price    *decimal.Decimal `json:"price,omitempty" swaggertype:"string" example:"25.00"`
}

type CreateOrderRequest struct {
	Customer              CustomerDTO        `json:"customer"`
	ShippingAddress       AddressDTO         `json:"shipping_address"`
	BillingSameAsShipping *bool              `json:"billing_same_as_shipping,omitempty"`
	BillingAddress        *AddressDTO        `json:"billing_address,omitempty"`
	Items                 []OrderItemRequest `json:"items"`
	ShippingCost          *decimal.Decimal   `json:"shipping_cost,omitempty" swaggertype:"string" example:"5.00"`
	TaxAmount             *decimal.Decimal   `json:"tax_amount,omitempty" swaggertype:"string" example:"0.00"`
	DiscountAmount        *decimal.Decimal   `json:"discount_amount,omitempty" swaggertype:"string" example:"0.00"`
	TotalAmount           *decimal.Decimal   `json:"total_amount,omitempty" swaggertype:"string" example:"55.00"`
	PaymentMethod         string             `json:"payment_method" example:"paypal"`
	ShippingMethod        *string            `json:"shipping_method,omitempty" example:"dhl"`
	CustomerNotes         *string            `json:"customer_notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status         string  `json:"status" binding:"required" example:"shipped"`
	Override       bool    `json:"override,omitempty"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
	Note           *string `json:"note,omitempty"`
}

type UpdatePaymentRequest struct {
	Status    string  `json:"status" binding:"required" example:"paid"`
	Reference *string `json:"reference,omitempty" example:"PAY-4XK21"`
}

type UpdateFulfillmentRequest struct {
	TrackingNumber *string `json:"tracking_number,omitempty"`
	ShippingMethod *string `json:"shipping_method,omitempty"`
	AdminNotes     *string `json:"admin_notes,omitempty"`
}

type CancelOrderRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type OrderItemResponse struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductSKU  *string `json:"product_sku,omitempty"`
	UnitPrice   string  `json:"unit_price" example:"25.00"`
	Quantity    int32   `json:"quantity"`
	TotalPrice  string  `json:"total_price" example:"50.00"`
}

type OrderResponse struct {
	OrderNumber           string              `json:"order_number" example:"CP20260115A1B2C3D4"`
	UserID                *string             `json:"user_id,omitempty"`
	Customer              CustomerDTO         `json:"customer"`
	ShippingAddress       AddressDTO          `json:"shipping_address"`
	BillingSameAsShipping bool                `json:"billing_same_as_shipping"`
	BillingAddress        *AddressDTO         `json:"billing_address,omitempty"`
	Items                 []OrderItemResponse `json:"items"`
	Subtotal              string              `json:"subtotal"`
	ShippingCost          string              `json:"shipping_cost"`
	TaxAmount             string              `json:"tax_amount"`
	DiscountAmount        string              `json:"discount_amount"`
	TotalAmount           string              `json:"total_amount"`
	Status                string              `json:"status"`
	PaymentStatus         string              `json:"payment_status"`
	PaymentMethod         string              `json:"payment_method"`
	PaymentReference      *string             `json:"payment_reference,omitempty"`
	ShippingMethod        *string             `json:"shipping_method,omitempty"`
	TrackingNumber        *string             `json:"tracking_number,omitempty"`
	ShippedAt             *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time          `json:"delivered_at,omitempty"`
	CustomerNotes         *string             `json:"customer_notes,omitempty"`
	AdminNotes            *string             `json:"admin_notes,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// NewOrderResponse maps an order; admin notes are shown to admins only.
func NewOrderResponse(o *models.Order, withAdminNotes bool) OrderResponse {
	resp := OrderResponse{
		OrderNumber: o.OrderNumber,
		Customer: CustomerDTO{
			Email:     o.CustomerEmail,
			FirstName: o.CustomerFirstName,
			LastName:  o.CustomerLastName,
			Phone:     o.CustomerPhone,
		},
		ShippingAddress:       addressFromModel(o.ShippingAddress),
		BillingSameAsShipping: o.BillingSameAsShipping,
		Items:                 make([]OrderItemResponse, 0, len(o.Items)),
		Subtotal:              money(o.Subtotal),
		ShippingCost:          money(o.ShippingCost),
		TaxAmount:             money(o.TaxAmount),
		DiscountAmount:        money(o.DiscountAmount),
		TotalAmount:           money(o.TotalAmount),
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		PaymentMethod:         o.PaymentMethod,
		PaymentReference:      o.PaymentReference,
		ShippingMethod:        o.ShippingMethod,
		TrackingNumber:        o.TrackingNumber,
		ShippedAt:             o.ShippedAt,
		DeliveredAt:           o.DeliveredAt,
		CustomerNotes:         o.CustomerNotes,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	if o.UserID != nil {
		s := o.UserID.String()
		resp.UserID = &s
	}
	if !o.BillingSameAsShipping && !o.BillingAddress.IsZero() {
		b := addressFromModel(o.BillingAddress)
		resp.BillingAddress = &b
	}
	if withAdminNotes {
		resp.AdminNotes = o.AdminNotes
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			UnitPrice:   money(it.UnitPrice),
			Quantity:    it.Quantity,
			TotalPrice:  money(it.TotalPrice),
		})
	}
	return resp
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
}

type CustomerSummaryResponse struct {
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	UserID      *string   `json:"user_id,omitempty"`
	OrdersCount int64     `json:"orders_count"`
	TotalSpent  string    `json:"total_spent"`
	FirstOrder  time.Time `json:"first_order"`
	LastOrder   time.Time `json:"last_order"`
}

type CustomerListResponse struct {
	Customers []CustomerSummaryResponse `json:"customers"`
	Total     int64                     `json:"total"`
}

func NewCustomerSummaryResponse(c models.CustomerSummary) CustomerSummaryResponse {
	resp := CustomerSummaryResponse{
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		OrdersCount: c.OrdersCount,
		TotalSpent:  money(c.TotalSpent),
		FirstOrder:  c.FirstOrder,
		LastOrder:   c.LastOrder,
	}
	if c.UserID != nil {
		s := c.UserID.String()
		resp.UserID = &s
	}
	return resp
}
