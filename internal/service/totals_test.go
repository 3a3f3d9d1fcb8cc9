package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"storefront-order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	lines := []ValidatedLine{
		{UnitPrice: dec("10.00"), Quantity: 2, TotalPrice: LineTotal(dec("10.00"), 2)},
		{UnitPrice: dec("5.00"), Quantity: 1, TotalPrice: LineTotal(dec("5.00"), 1)},
	}

	got, err := ComputeTotals(lines, Charges{ShippingCost: dec("3"), TaxAmount: dec("2")}, decPtr("30.00"))
	require.NoError(t, err)
	assert.Equal(t, "25.00", got.Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", got.TotalAmount.StringFixed(2))
	require.NoError(t, got.Verify())

	// within one cent is accepted
	_, err = ComputeTotals(lines, Charges{ShippingCost: dec("3"), TaxAmount: dec("2")}, decPtr("30.01"))
	assert.NoError(t, err)

	_, err = ComputeTotals(lines, Charges{}, decPtr("25.02"))
	assert.ErrorIs(t, err, ErrTotalMismatch)

	_, err = ComputeTotals(lines, Charges{DiscountAmount: dec("26")}, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComputeTotals(nil, Charges{}, nil)
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestLineTotal_RoundsToCents(t *testing.T) {
	assert.Equal(t, "10.00", LineTotal(dec("3.333"), 3).StringFixed(2))
	assert.Equal(t, "0.00", LineTotal(dec("0"), 7).StringFixed(2))
}

func TestTotals_VerifyDetectsDrift(t *testing.T) {
	tt := Totals{Subtotal: dec("10"), ShippingCost: dec("1"), TaxAmount: dec("0"), DiscountAmount: dec("0"), TotalAmount: dec("12")}
	assert.ErrorIs(t, tt.Verify(), ErrTotalMismatch)
}

type staticCatalog map[uuid.UUID]CatalogProduct

func (c staticCatalog) LookupProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]CatalogProduct, error) {
	out := map[uuid.UUID]CatalogProduct{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestLineItemValidator(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	catalog := staticCatalog{
		a: {ID: a, Name: "Mug", Price: dec("10.00"), Active: true},
		b: {ID: b, Name: "Pen", Price: dec("5.00"), Active: true, TrackInventory: true, AllowBackorder: true},
	}
	v := NewLineItemValidator(catalog, PricePolicyStrict)
	ctx := context.Background()

	lines, err := v.Validate(ctx, []CreateOrderItem{line(b, 4, ""), line(a, 1, "10.005")})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, b, lines[0].ProductID, "submission order is kept")
	assert.Equal(t, "20.00", lines[0].TotalPrice.StringFixed(2))

	_, err = v.Validate(ctx, []CreateOrderItem{line(a, 1, "10.00"), line(a, 1, "11.00")})
	assert.ErrorIs(t, err, ErrPriceMismatch)

	_, err = v.Validate(ctx, []CreateOrderItem{line(a, 500, ""), line(a, 500, "")})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = v.Validate(ctx, []CreateOrderItem{line(a, 1, "-1")})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = v.Validate(ctx, []CreateOrderItem{{ProductID: uuid.Nil, Quantity: 1}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParsePricePolicy(t *testing.T) {
	p, err := ParsePricePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PricePolicyStrict, p)

	p, err = ParsePricePolicy("catalog")
	require.NoError(t, err)
	assert.Equal(t, PricePolicyCatalog, p)

	_, err = ParsePricePolicy("cheapest")
	assert.Error(t, err)
}

func TestOrderNumberGenerator(t *testing.T) {
	g := NewOrderNumberGenerator("cp")
	g.random = sequence("x7k2m9qa")
	now := time.Date(2025, 12, 31, 23, 30, 0, 0, time.FixedZone("CET", 3600))

	got, err := g.Next(now)
	require.NoError(t, err)
	assert.Equal(t, "CP20251231X7K2M9QA", got)

	g.random = func(int) (string, error) { return "", errors.New("entropy") }
	_, err = g.Next(now)
	assert.Error(t, err)

}

func TestOrderNumberGenerator_SuffixIsRandom(t *testing.T) {
	gen := NewOrderNumberGenerator("")
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	format := regexp.MustCompile(`^CP20250314[0-9A-F]{8}$`)

	seen := make(map[string]bool, 2000)
	digitsOnly := 0
	for i := 0; i < 2000; i++ {
		n, err := gen.Next(now)
		require.NoError(t, err)
		require.Regexp(t, format, n)
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
		if strings.Trim(n[10:], "0123456789") == "" {
			digitsOnly++
		}
	}
	// a uniform hex suffix is digits-only about 2.3% of the time
	assert.Less(t, digitsOnly, 200)
}

func TestMapStoreErr(t *testing.T) {
	tests := []struct {
		name      string
		in        error
		want      error
		retryable bool
	}{
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrStoreUnavailable, true},
		{"lock wait", &pgconn.PgError{Code: "55P03"}, ErrStoreUnavailable, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrConcurrentUpdate, true},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: repository.OrderNumberConstraint}, ErrStore, true},
		{"already classified", ErrOrderNotFound, ErrOrderNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapStoreErr(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
	assert.NoError(t, mapStoreErr(nil))
}
