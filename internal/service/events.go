package service

import (
	"storefront-order-service/internal/models"
	"storefront-order-service/internal/producer"
)

func orderCreatedEvent(o *models.Order) producer.OrderCreatedEvent {
	items := make([]producer.OrderItemEvent, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, producer.OrderItemEvent{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return producer.OrderCreatedEvent{
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		Subtotal:      o.Subtotal,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
	}
}

const orderConfirmationTemplate = "order_confirmation"

func orderConfirmationEmail(o *models.Order) producer.EmailMessage {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":        it.ProductName,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice.StringFixed(moneyPlaces),
			"total_price": it.TotalPrice.StringFixed(moneyPlaces),
		})
	}
	return producer.EmailMessage{
		To:       o.CustomerEmail,
		Subject:  "Order confirmation " + o.OrderNumber,
		Template: orderConfirmationTemplate,
		Data: map[string]any{
			"order_number":  o.OrderNumber,
			"customer_name": o.CustomerName(),
			"items":         items,
			"subtotal":      o.Subtotal.StringFixed(moneyPlaces),
			"shipping_cost": o.ShippingCost.StringFixed(moneyPlaces),
			"tax_amount":    o.TaxAmount.StringFixed(moneyPlaces),
			"discount":      o.DiscountAmount.StringFixed(moneyPlaces),
			"total_amount":  o.TotalAmount.StringFixed(moneyPlaces),
			"created_at":    o.CreatedAt,
		},
	}
}
