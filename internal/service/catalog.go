package service

import (
	"context"
	"fmt"

	"storefront-order-service/internal/repository"

	commonv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/common/v1"
	inventoryv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/inventory/v1"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocalCatalog reads the products table that lives next to the orders.
type LocalCatalog struct {
	products repository.ProductRepo
}

func NewLocalCatalog(products repository.ProductRepo) *LocalCatalog {
	return &LocalCatalog{products: products}
}

func (c *LocalCatalog) LookupProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]CatalogProduct, error) {
	rows, err := c.products.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make(map[uuid.UUID]CatalogProduct, len(rows))
	for _, p := range rows {
		out[p.ID] = CatalogProduct{
			ID:             p.ID,
			Name:           p.Name,
			SKU:            p.SKU,
			Price:          p.Price,
			Active:         p.IsActive,
			TrackInventory: p.TrackInventory,
			AllowBackorder: p.AllowBackorder,
			Available:      p.InventoryQuantity,
		}
	}
	return out, nil
}

// InventoryCatalog asks the inventory service over gRPC. Stock is owned by
// that service, so products come back untracked here.
type InventoryCatalog struct {
	client inventoryv1.InventoryServiceClient
}

func NewInventoryCatalog(client inventoryv1.InventoryServiceClient) *InventoryCatalog {
	return &InventoryCatalog{client: client}
}

func (c *InventoryCatalog) LookupProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]CatalogProduct, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]CatalogProduct{}, nil
	}

	protoIDs := make([]*commonv1.UUID, 0, len(ids))
	for _, id := range ids {
		protoIDs = append(protoIDs, &commonv1.UUID{Value: id.String()})
	}

	resp, err := c.client.BatchGetProducts(ctx, &inventoryv1.BatchGetProductsRequest{
		ProductIds: protoIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to batch get products from inventory: %w", err)
	}

	out := make(map[uuid.UUID]CatalogProduct, len(resp.GetProducts()))
	for _, product := range resp.GetProducts() {
		if product == nil {
			continue
		}

		pid, err := uuid.Parse(product.GetId().GetValue())
		if err != nil {
			continue
		}

		var sku *string
		if s := product.GetSku(); s != "" {
			sku = &s
		}
		out[pid] = CatalogProduct{
			ID:     pid,
			Name:   product.GetName(),
			SKU:    sku,
			Price:  decimal.New(product.GetPriceCents(), -2),
			Active: product.GetIsActive(),
		}
	}
	return out, nil
}
