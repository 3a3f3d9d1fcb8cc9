package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront-order-service/internal/migrate"
	"storefront-order-service/internal/models"
	"storefront-order-service/internal/repository"
	"storefront-order-service/internal/service"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setupService(t *testing.T, mutate func(*service.Options)) (service.OrderService, *repository.Repository) {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateOrderDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repos := repository.New(db)
	opt := service.DefaultOptions()
	if mutate != nil {
		mutate(&opt)
	}
	svc := service.NewOrderService(service.Deps{
		Repo:    repos,
		Catalog: service.NewLocalCatalog(repos.Products),
		Log:     zap.NewNop(),
	}, opt)
	return svc, repos
}

func seedProduct(t *testing.T, repos *repository.Repository, price string, stock int32) uuid.UUID {
	t.Helper()
	p := &models.Product{
		ID:                uuid.New(),
		Name:              "Mug " + price,
		Price:             decimal.RequireFromString(price),
		IsActive:          true,
		TrackInventory:    stock > 0,
		InventoryQuantity: stock,
	}
	if err := repos.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

func checkout(items ...service.CreateOrderItem) service.CreateOrderInput {
	return service.CreateOrderInput{
		Customer:              service.CustomerInfo{Email: "anna@example.com", FirstName: "Anna", LastName: "Schmidt"},
		ShippingAddress:       models.Address{Line1: "Hauptstr. 1", City: "Berlin", PostalCode: "10115"},
		BillingSameAsShipping: true,
		Items:                 items,
		PaymentMethod:         "card",
	}
}

func asCustomer(uid uuid.UUID) context.Context {
	return service.WithRole(service.WithUserID(context.Background(), uid), service.RoleCustomer)
}

func asAdmin() context.Context {
	return service.WithRole(service.WithUserID(context.Background(), uuid.New()), service.RoleAdmin)
}

func TestPostgres_CreateOrderEndToEnd(t *testing.T) {
	svc, repos := setupService(t, nil)
	a := seedProduct(t, repos, "10.00", 0)
	b := seedProduct(t, repos, "5.00", 0)

	in := checkout(
		service.CreateOrderItem{ProductID: a, Quantity: 2},
		service.CreateOrderItem{ProductID: b, Quantity: 1},
	)
	in.Charges = service.Charges{ShippingCost: decimal.RequireFromString("3"), TaxAmount: decimal.RequireFromString("2")}
	total := decimal.RequireFromString("30.00")
	in.ClientTotal = &total

	uid := uuid.New()
	ord, err := svc.CreateOrder(asCustomer(uid), in)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := svc.GetOrder(asCustomer(uid), ord.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.Subtotal.Equal(decimal.RequireFromString("25")) || !got.TotalAmount.Equal(total) {
		t.Fatalf("totals: subtotal=%s total=%s", got.Subtotal, got.TotalAmount)
	}
	if len(got.Items) != 2 || got.Status != models.OrderStatusPending {
		t.Fatalf("stored order: %+v", got)
	}
}

func TestPostgres_StockReservedAndReleased(t *testing.T) {
	svc, repos := setupService(t, func(o *service.Options) { o.ReserveStock = true })
	a := seedProduct(t, repos, "10.00", 3)
	uid := uuid.New()

	ord, err := svc.CreateOrder(asCustomer(uid), checkout(service.CreateOrderItem{ProductID: a, Quantity: 3}))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	_, err = svc.CreateOrder(asCustomer(uid), checkout(service.CreateOrderItem{ProductID: a, Quantity: 1}))
	if !errors.Is(err, service.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}

	if _, err := svc.CancelOrder(asCustomer(uid), ord.OrderNumber, nil); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	p, _ := repos.Products.GetByID(context.Background(), a)
	if p.InventoryQuantity != 3 {
		t.Fatalf("stock after cancel: %d", p.InventoryQuantity)
	}
}

func TestPostgres_ConcurrentShipAndCancel(t *testing.T) {
	svc, repos := setupService(t, nil)
	a := seedProduct(t, repos, "10.00", 0)
	ord, err := svc.CreateOrder(asCustomer(uuid.New()), checkout(service.CreateOrderItem{ProductID: a, Quantity: 1}))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	admin := asAdmin()
	for _, st := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusProcessing} {
		if _, err := svc.UpdateOrderStatus(admin, service.UpdateStatusInput{OrderNumber: ord.OrderNumber, Status: st}); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.UpdateOrderStatus(admin, service.UpdateStatusInput{OrderNumber: ord.OrderNumber, Status: models.OrderStatusShipped})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.CancelOrder(admin, ord.OrderNumber, nil)
	}()
	wg.Wait()

	final, err := svc.GetOrder(admin, ord.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	for i, err := range errs {
		if err != nil && !errors.Is(err, service.ErrConflict) {
			t.Fatalf("writer %d failed with non-conflict error: %v", i, err)
		}
	}
	switch {
	case errs[0] == nil && errs[1] == nil:
		// the writes did not overlap: ship committed first, cancel followed
		if final.Status != models.OrderStatusCancelled || final.ShippedAt == nil {
			t.Fatalf("sequential outcome: %s", final.Status)
		}
	case errs[0] == nil:
		if final.Status != models.OrderStatusShipped {
			t.Fatalf("ship won but status is %s", final.Status)
		}
	case errs[1] == nil:
		if final.Status != models.OrderStatusCancelled {
			t.Fatalf("cancel won but status is %s", final.Status)
		}
	default:
		t.Fatalf("both writers failed: %v", errs)
	}
}

func TestPostgres_ConcurrentOrdersGetDistinctNumbers(t *testing.T) {
	svc, repos := setupService(t, nil)
	a := seedProduct(t, repos, "10.00", 0)

	const n = 16
	var (
		wg      sync.WaitGroup
		numbers [n]string
		errs    [n]error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ord, err := svc.CreateOrder(asCustomer(uuid.New()), checkout(service.CreateOrderItem{ProductID: a, Quantity: 1}))
			errs[i] = err
			if err == nil {
				numbers[i] = ord.OrderNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		if seen[numbers[i]] {
			t.Fatalf("duplicate order number %s", numbers[i])
		}
		seen[numbers[i]] = true
	}
	_, total, err := repos.Orders.List(context.Background(), repository.OrderListFilter{Limit: n * 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != n {
		t.Fatalf("stored orders: got %d want %d", total, n)
	}
}
