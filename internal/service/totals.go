package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// MoneyTolerance is the largest accepted gap between a client-supplied amount
// and the server-side computation.
var MoneyTolerance = decimal.New(1, -moneyPlaces)

func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(moneyPlaces) }

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyTolerance)
}

// Charges are the order-level amounts supplied by pricing collaborators.
type Charges struct {
	ShippingCost   decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
}

type Totals struct {
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// LineTotal is unit price times quantity rounded to cents.
func LineTotal(unitPrice decimal.Decimal, qty int32) decimal.Decimal {
	return roundMoney(unitPrice.Mul(decimal.NewFromInt32(qty)))
}

// ComputeTotals sums line totals into the subtotal and applies charges.
// clientTotal, when given, must agree with the computed total.
func ComputeTotals(lines []ValidatedLine, ch Charges, clientTotal *decimal.Decimal) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrEmptyItems
	}
	for name, v := range map[string]decimal.Decimal{
		"shipping_cost":   ch.ShippingCost,
		"tax_amount":      ch.TaxAmount,
		"discount_amount": ch.DiscountAmount,
	} {
		if v.IsNegative() {
			return Totals{}, fmt.Errorf("%w: %s", ErrInvalidAmount, name)
		}
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalPrice)
	}

	t := Totals{
		Subtotal:       roundMoney(subtotal),
		ShippingCost:   roundMoney(ch.ShippingCost),
		TaxAmount:      roundMoney(ch.TaxAmount),
		DiscountAmount: roundMoney(ch.DiscountAmount),
	}
	t.TotalAmount = t.Subtotal.Add(t.ShippingCost).Add(t.TaxAmount).Sub(t.DiscountAmount)
	if t.TotalAmount.IsNegative() {
		return Totals{}, fmt.Errorf("%w: discount exceeds order value", ErrInvalidAmount)
	}

	if clientTotal != nil && !withinTolerance(*clientTotal, t.TotalAmount) {
		return Totals{}, fmt.Errorf("%w: submitted %s, computed %s",
			ErrTotalMismatch, clientTotal.StringFixed(moneyPlaces), t.TotalAmount.StringFixed(moneyPlaces))
	}
	return t, nil
}

// Verify re-checks the total invariant.
func (t Totals) Verify() error {
	want := t.Subtotal.Add(t.ShippingCost).Add(t.TaxAmount).Sub(t.DiscountAmount)
	if !withinTolerance(want, t.TotalAmount) {
		return fmt.Errorf("%w: total %s, expected %s", ErrTotalMismatch,
			t.TotalAmount.StringFixed(moneyPlaces), want.StringFixed(moneyPlaces))
	}
	return nil
}
