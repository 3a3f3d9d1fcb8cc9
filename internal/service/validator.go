package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantityPerLine caps a single product line.
const MaxQuantityPerLine = 999

type PricePolicy string

const (
	// PricePolicyStrict rejects a submitted price that differs from the catalog.
	PricePolicyStrict PricePolicy = "strict"
	// PricePolicyCatalog ignores submitted prices.
	PricePolicyCatalog PricePolicy = "catalog"
)

func ParsePricePolicy(s string) (PricePolicy, error) {
	switch PricePolicy(s) {
	case PricePolicyStrict, PricePolicyCatalog:
		return PricePolicy(s), nil
	case "":
		return PricePolicyStrict, nil
	}
	return "", fmt.Errorf("unknown price policy %q", s)
}

// ValidatedLine is a snapshot ready to be stored as an order item. The unit
// price always comes from the catalog.
type ValidatedLine struct {
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  *string
	UnitPrice   decimal.Decimal
	Quantity    int32
	TotalPrice  decimal.Decimal
}

type LineItemValidator struct {
	catalog Catalog
	policy  PricePolicy
}

func NewLineItemValidator(catalog Catalog, policy PricePolicy) *LineItemValidator {
	if policy == "" {
		policy = PricePolicyStrict
	}
	return &LineItemValidator{catalog: catalog, policy: policy}
}

type mergedLine struct {
	productID uuid.UUID
	qty       int
	price     *decimal.Decimal
}

// Validate checks every submitted line against the catalog and returns
// snapshots in submission order. Lines for the same product are merged.
func (v *LineItemValidator) Validate(ctx context.Context, items []CreateOrderItem) ([]ValidatedLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	merged := make([]*mergedLine, 0, len(items))
	byID := make(map[uuid.UUID]*mergedLine, len(items))
	for i, it := range items {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: items[%d]: product id is required", ErrValidation, i)
		}
		if it.Quantity <= 0 || it.Quantity > MaxQuantityPerLine {
			return nil, fmt.Errorf("%w: items[%d]: got %d", ErrInvalidQuantity, i, it.Quantity)
		}
		if it.Price != nil && it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: items[%d]: price", ErrInvalidAmount, i)
		}

		if m, ok := byID[it.ProductID]; ok {
			if m.price != nil && it.Price != nil && !m.price.Equal(*it.Price) {
				return nil, fmt.Errorf("%w: product %s submitted with different prices", ErrPriceMismatch, it.ProductID)
			}
			if m.price == nil {
				m.price = it.Price
			}
			m.qty += it.Quantity
			if m.qty > MaxQuantityPerLine {
				return nil, fmt.Errorf("%w: product %s: merged quantity %d", ErrInvalidQuantity, it.ProductID, m.qty)
			}
			continue
		}
		m := &mergedLine{productID: it.ProductID, qty: it.Quantity, price: it.Price}
		merged = append(merged, m)
		byID[it.ProductID] = m
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for _, m := range merged {
		ids = append(ids, m.productID)
	}
	products, err := v.catalog.LookupProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]ValidatedLine, 0, len(merged))
	for _, m := range merged {
		p, ok := products[m.productID]
		if !ok || !p.Active {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, m.productID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("%w: catalog price for %s", ErrInvalidAmount, m.productID)
		}
		if v.policy == PricePolicyStrict && m.price != nil && !withinTolerance(*m.price, p.Price) {
			return nil, fmt.Errorf("%w: product %s: submitted %s, current %s", ErrPriceMismatch,
				m.productID, m.price.StringFixed(moneyPlaces), p.Price.StringFixed(moneyPlaces))
		}
		if p.TrackInventory && !p.AllowBackorder && int(p.Available) < m.qty {
			return nil, fmt.Errorf("%w: product %s: requested %d, available %d", ErrOutOfStock, m.productID, m.qty, p.Available)
		}

		qty := int32(m.qty)
		unit := roundMoney(p.Price)
		lines = append(lines, ValidatedLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			UnitPrice:   unit,
			Quantity:    qty,
			TotalPrice:  LineTotal(unit, qty),
		})
	}
	return lines, nil
}
