package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-order-service/internal/models"
	"storefront-order-service/internal/producer"
	"storefront-order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for Postgres. Writes inside WithTx are
// rolled back when fn fails; UpdateWithVersion honours the version guard.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	orders   map[uint64]*models.Order
	items    map[uint64][]models.OrderItem
	products map[uuid.UUID]*models.Product
	nextID   uint64
	nextItem uint64

	// hooks
	existsLies    bool
	bulkCreateErr error
	getBarrier    *readBarrier
	lastFilter    repository.OrderListFilter
	lastCustomers [2]int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[uint64]*models.Order{},
		items:    map[uint64][]models.OrderItem{},
		products: map[uuid.UUID]*models.Product{},
	}
}

func (s *memStore) repo() *repository.Repository {
	return &repository.Repository{
		Orders:     &memOrders{s},
		OrderItems: &memItems{s},
		Products:   &memProducts{s},
	}
}

type memSnapshot struct {
	orders   map[uint64]models.Order
	items    map[uint64][]models.OrderItem
	products map[uuid.UUID]models.Product
	nextID   uint64
	nextItem uint64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		orders:   make(map[uint64]models.Order, len(s.orders)),
		items:    make(map[uint64][]models.OrderItem, len(s.items)),
		products: make(map[uuid.UUID]models.Product, len(s.products)),
		nextID:   s.nextID,
		nextItem: s.nextItem,
	}
	for k, v := range s.orders {
		snap.orders[k] = *v
	}
	for k, v := range s.items {
		snap.items[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range s.products {
		snap.products[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[uint64]*models.Order, len(snap.orders))
	for k, v := range snap.orders {
		o := v
		s.orders[k] = &o
	}
	s.items = snap.items
	s.products = make(map[uuid.UUID]*models.Product, len(snap.products))
	for k, v := range snap.products {
		p := v
		s.products[k] = &p
	}
	s.nextID = snap.nextID
	s.nextItem = snap.nextItem
}

// WithTx serializes transactions and undoes their writes on error.
func (s *memStore) WithTx(ctx context.Context, fn func(tx *repository.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(s.repo()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) addProduct(name string, price string, mods ...func(*models.Product)) uuid.UUID {
	p := &models.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	for _, m := range mods {
		m(p)
	}
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p.ID
}

func (s *memStore) stock(id uuid.UUID) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].InventoryQuantity
}

func (s *memStore) mutate(number string, fn func(o *models.Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			fn(o)
			return
		}
	}
	panic("no order " + number)
}

// readBarrier holds the first n reads until all of them arrived.
type readBarrier struct {
	mu    sync.Mutex
	left  int
	ready chan struct{}
}

func newReadBarrier(n int) *readBarrier {
	return &readBarrier{left: n, ready: make(chan struct{})}
}

func (b *readBarrier) wait() {
	b.mu.Lock()
	if b.left <= 0 {
		b.mu.Unlock()
		return
	}
	b.left--
	if b.left == 0 {
		close(b.ready)
	}
	b.mu.Unlock()
	<-b.ready
}

type memOrders struct{ s *memStore }

func (r *memOrders) withItems(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), r.s.items[o.ID]...)
	return &cp
}

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.orders {
		if ex.OrderNumber == o.OrderNumber {
			return &pgconn.PgError{Code: "23505", ConstraintName: repository.OrderNumberConstraint}
		}
	}
	r.s.nextID++
	o.ID = r.s.nextID
	cp := *o
	cp.Items = nil
	r.s.orders[o.ID] = &cp
	return nil
}

func (r *memOrders) GetByID(_ context.Context, id uint64) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	return r.withItems(o), nil
}

func (r *memOrders) GetByNumber(_ context.Context, number string) (*models.Order, error) {
	r.s.mu.Lock()
	b := r.s.getBarrier
	var found *models.Order
	for _, o := range r.s.orders {
		if o.OrderNumber == number {
			found = r.withItems(o)
			break
		}
	}
	r.s.mu.Unlock()
	if b != nil {
		b.wait()
	}
	return found, nil
}

func (r *memOrders) ExistsByNumber(_ context.Context, number string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.existsLies {
		return false, nil
	}
	for _, o := range r.s.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func strField(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func (r *memOrders) UpdateWithVersion(_ context.Context, id uint64, version int64, fields map[string]any) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Version != version {
		return false, nil
	}
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "payment_status":
			o.PaymentStatus = v.(models.PaymentStatus)
		case "shipped_at":
			t := v.(time.Time)
			o.ShippedAt = &t
		case "delivered_at":
			t := v.(time.Time)
			o.DeliveredAt = &t
		case "tracking_number":
			o.TrackingNumber = strField(v)
		case "shipping_method":
			o.ShippingMethod = strField(v)
		case "payment_reference":
			o.PaymentReference = strField(v)
		case "admin_notes":
			o.AdminNotes = strField(v)
		default:
			return false, errors.New("unexpected column " + k)
		}
	}
	o.Version++
	return true, nil
}

func (r *memOrders) sorted(match func(o *models.Order) bool) []*models.Order {
	var out []*models.Order
	for _, o := range r.s.orders {
		if match(o) {
			out = append(out, r.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memOrders) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(o *models.Order) bool { return o.IsOwnedBy(userID) }), nil
}

func (r *memOrders) List(_ context.Context, f repository.OrderListFilter) ([]*models.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastFilter = f
	all := r.sorted(func(*models.Order) bool { return true })
	total := int64(len(all))
	if f.Offset < len(all) {
		all = all[f.Offset:]
	} else {
		all = nil
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *memOrders) ListCustomers(_ context.Context, offset, limit int) ([]models.CustomerSummary, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastCustomers = [2]int{offset, limit}
	byEmail := map[string]*models.CustomerSummary{}
	for _, o := range r.s.orders {
		key := strings.ToLower(o.CustomerEmail)
		c, ok := byEmail[key]
		if !ok {
			c = &models.CustomerSummary{Email: key}
			byEmail[key] = c
		}
		c.OrdersCount++
	}
	out := make([]models.CustomerSummary, 0, len(byEmail))
	for _, c := range byEmail {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *memOrders) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(o *models.Order) bool {
		return o.Status == models.OrderStatusPending &&
			(o.PaymentStatus == models.PaymentStatusPending || o.PaymentStatus == models.PaymentStatusFailed) &&
			o.CreatedAt.Before(createdBefore)
	}), nil
}

func (r *memOrders) Delete(_ context.Context, id uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return false, nil
	}
	delete(r.s.orders, id)
	delete(r.s.items, id)
	return true, nil
}

func (r *memOrders) DeleteByStatusBefore(_ context.Context, statuses []models.OrderStatus, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, o := range r.s.orders {
		for _, st := range statuses {
			if o.Status == st && o.UpdatedAt.Before(cutoff) {
				delete(r.s.orders, id)
				delete(r.s.items, id)
				n++
				break
			}
		}
	}
	return n, nil
}

type memItems struct{ s *memStore }

func (r *memItems) BulkCreate(_ context.Context, items []models.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bulkCreateErr != nil {
		return r.s.bulkCreateErr
	}
	for i := range items {
		r.s.nextItem++
		items[i].ID = r.s.nextItem
		r.s.items[items[i].OrderID] = append(r.s.items[items[i].OrderID], items[i])
	}
	return nil
}

func (r *memItems) GetByOrderID(_ context.Context, orderID uint64) ([]models.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]models.OrderItem(nil), r.s.items[orderID]...), nil
}

func (r *memItems) SumByOrder(_ context.Context, orderID uint64) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, it := range r.s.items[orderID] {
		sum = sum.Add(it.TotalPrice)
	}
	return sum, nil
}

type memProducts struct{ s *memStore }

func (r *memProducts) Create(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.products[p.ID] = &cp
	return nil
}

func (r *memProducts) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) BatchGetByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProducts) Reserve(_ context.Context, id uuid.UUID, qty int32) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || !p.IsActive {
		return false, nil
	}
	if !p.TrackInventory {
		return true, nil
	}
	if !p.AllowBackorder && p.InventoryQuantity < qty {
		return false, nil
	}
	p.InventoryQuantity -= qty
	return true, nil
}

func (r *memProducts) Restock(_ context.Context, id uuid.UUID, qty int32) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || !p.TrackInventory {
		return false, nil
	}
	p.InventoryQuantity += qty
	return true, nil
}

type recordingBus struct {
	mu       sync.Mutex
	created  []producer.OrderCreatedEvent
	statuses []producer.OrderStatusChangedEvent
	payments []producer.PaymentStatusChangedEvent
}

func (b *recordingBus) PublishOrderCreated(_ context.Context, e producer.OrderCreatedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, e)
	return nil
}

func (b *recordingBus) PublishOrderStatusChanged(_ context.Context, e producer.OrderStatusChangedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, e)
	return nil
}

func (b *recordingBus) PublishPaymentStatusChanged(_ context.Context, e producer.PaymentStatusChangedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments = append(b.payments, e)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []producer.EmailMessage
}

func (m *recordingMailer) SendEmail(_ context.Context, _ string, msg producer.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdempotency() *memIdempotency { return &memIdempotency{keys: map[string]string{}} }

func (m *memIdempotency) Reserve(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.keys[key]; ok {
		return v, false, nil
	}
	m.keys[key] = ""
	return "", true, nil
}

func (m *memIdempotency) Complete(_ context.Context, key, orderNumber string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderNumber
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
