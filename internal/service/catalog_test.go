package service

import (
	"context"
	"errors"
	"testing"

	commonv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/common/v1"
	inventoryv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/inventory/v1"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type fakeInventory struct {
	inventoryv1.InventoryServiceClient
	BatchFn func(ctx context.Context, in *inventoryv1.BatchGetProductsRequest) (*inventoryv1.BatchGetProductsResponse, error)
}

func (f *fakeInventory) BatchGetProducts(ctx context.Context, in *inventoryv1.BatchGetProductsRequest, _ ...grpc.CallOption) (*inventoryv1.BatchGetProductsResponse, error) {
	return f.BatchFn(ctx, in)
}

func TestInventoryCatalog_LookupProducts(t *testing.T) {
	known := uuid.New()
	var asked []string
	client := &fakeInventory{BatchFn: func(_ context.Context, in *inventoryv1.BatchGetProductsRequest) (*inventoryv1.BatchGetProductsResponse, error) {
		for _, id := range in.GetProductIds() {
			asked = append(asked, id.GetValue())
		}
		return &inventoryv1.BatchGetProductsResponse{Products: []*inventoryv1.Product{
			{Id: &commonv1.UUID{Value: known.String()}, Name: "Mug", Sku: "MUG-1", PriceCents: 1299, IsActive: true},
			{Id: &commonv1.UUID{Value: "garbage"}, Name: "Broken"},
			nil,
		}}, nil
	}}

	missing := uuid.New()
	got, err := NewInventoryCatalog(client).LookupProducts(context.Background(), []uuid.UUID{known, missing})
	require.NoError(t, err)
	assert.Equal(t, []string{known.String(), missing.String()}, asked)
	require.Len(t, got, 1)

	p := got[known]
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, "12.99", p.Price.StringFixed(2))
	require.NotNil(t, p.SKU)
	assert.Equal(t, "MUG-1", *p.SKU)
	assert.True(t, p.Active)
	assert.False(t, p.TrackInventory)
}

func TestInventoryCatalog_PropagatesErrors(t *testing.T) {
	client := &fakeInventory{BatchFn: func(context.Context, *inventoryv1.BatchGetProductsRequest) (*inventoryv1.BatchGetProductsResponse, error) {
		return nil, errors.New("unavailable")
	}}
	_, err := NewInventoryCatalog(client).LookupProducts(context.Background(), []uuid.UUID{uuid.New()})
	assert.Error(t, err)

	got, err := NewInventoryCatalog(client).LookupProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
