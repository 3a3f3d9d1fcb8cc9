package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-order-service/internal/models"
	"storefront-order-service/internal/producer"
	"storefront-order-service/internal/repository"

	"go.uber.org/zap"
)

type Deps struct {
	Repo        *repository.Repository
	Tx          TxRunner // defaults to Repo
	Catalog     Catalog
	Events      EventBus
	Emails      EmailProducer
	Idempotency IdempotencyStore
	Log         *zap.Logger
}

type orderService struct {
	repo      *repository.Repository
	tx        TxRunner
	validator *LineItemValidator
	numbers   *OrderNumberGenerator
	events    EventBus
	emails    EmailProducer
	idem      IdempotencyStore
	log       *zap.Logger
	opt       Options
	now       func() time.Time
}

func NewOrderService(d Deps, opt Options) OrderService {
	def := DefaultOptions()
	if opt.OrderNumberMaxAttempts <= 0 {
		opt.OrderNumberMaxAttempts = def.OrderNumberMaxAttempts
	}
	if opt.MaxConflictRetries < 0 {
		opt.MaxConflictRetries = 0
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = def.IdempotencyTTL
	}
	tx := d.Tx
	if tx == nil {
		tx = d.Repo
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &orderService{
		repo:      d.Repo,
		tx:        tx,
		validator: NewLineItemValidator(d.Catalog, opt.PricePolicy),
		numbers:   NewOrderNumberGenerator(opt.OrderNumberPrefix),
		events:    d.Events,
		emails:    d.Emails,
		idem:      d.Idempotency,
		log:       log,
		opt:       opt,
		now:       time.Now,
	}
}

// storeCtx bounds every store round trip.
func (s *orderService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opt.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opt.StoreTimeout)
}

// mapStoreErr puts raw driver errors into the service taxonomy.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrStore):
		return err
	case repository.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case repository.IsConcurrencyConflict(err):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	default:
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
}

var (
	errOrderNumberTaken = errors.New("order number taken")
	errVersionMismatch  = errors.New("order version changed")
	errSubtotalDrift    = fmt.Errorf("%w: persisted item totals disagree with subtotal", ErrStore)
)

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	id := identityFromContext(ctx)
	if id.IsGuest() && !s.opt.GuestCheckout {
		return nil, ErrUnauthorized
	}

	in, err := normalizeCreateInput(in, id, s.opt.DefaultCountry)
	if err != nil {
		return nil, err
	}

	idemKey := ""
	if in.IdempotencyKey != "" && s.idem != nil {
		idemKey = idempotencyScope(id, in)
		number, reserved, err := s.idem.Reserve(ctx, idemKey, s.opt.IdempotencyTTL)
		switch {
		case err != nil:
			s.log.Warn("idempotency store unavailable, continuing without it", zap.Error(err))
			idemKey = ""
		case !reserved && number == "":
			return nil, ErrIdempotencyInFlight
		case !reserved:
			return s.replayCreate(ctx, id, in, number)
		}
	}

	ord, err := s.createOrder(ctx, id, in)
	if err != nil {
		if idemKey != "" {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				s.log.Warn("failed to release idempotency key", zap.Error(rerr))
			}
		}
		return nil, err
	}

	if idemKey != "" {
		if err := s.idem.Complete(context.WithoutCancel(ctx), idemKey, ord.OrderNumber, s.opt.IdempotencyTTL); err != nil {
			s.log.Warn("failed to store idempotency result", zap.String("order_number", ord.OrderNumber), zap.Error(err))
		}
	}

	s.log.Info("order created",
		zap.String("order_number", ord.OrderNumber),
		zap.Int("items", len(ord.Items)),
		zap.String("total", ord.TotalAmount.StringFixed(moneyPlaces)),
		zap.Bool("guest", ord.UserID == nil),
	)
	s.afterCreate(ctx, ord)
	return ord, nil
}

// idempotencyScope keys users by id. Guests prove nothing but the request
// itself, so their scope is a digest of the key, the contact and the cart.
func idempotencyScope(id Identity, in CreateOrderInput) string {
	if !id.IsGuest() {
		return id.UserID.String() + ":" + in.IdempotencyKey
	}
	h := sha256.New()
	a := in.ShippingAddress
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00", in.IdempotencyKey, in.Customer.Email,
		in.Customer.LastName, a.Line1, a.PostalCode, a.Country)
	for _, it := range in.Items {
		fmt.Fprintf(h, "%s:%d;", it.ProductID, it.Quantity)
	}
	return "guest:" + hex.EncodeToString(h.Sum(nil))
}

// replayCreate returns the order an earlier request with the same key
// created, but only to a caller who could read it.
func (s *orderService) replayCreate(ctx context.Context, id Identity, in CreateOrderInput, number string) (*models.Order, error) {
	ord, err := s.loadByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	owned := ord.IsOwnedBy(id.UserID)
	if id.IsGuest() {
		owned = ord.UserID == nil && ord.CustomerEmail == in.Customer.Email
	}
	if !owned {
		s.log.Warn("idempotency key replayed by another caller", zap.String("order_number", number))
		return nil, ErrIdempotencyKeyReused
	}
	return ord, nil
}

func (s *orderService) createOrder(ctx context.Context, id Identity, in CreateOrderInput) (*models.Order, error) {
	lookupCtx, cancel := s.storeCtx(ctx)
	lines, err := s.validator.Validate(lookupCtx, in.Items)
	cancel()
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, mapStoreErr(err)
	}

	totals, err := ComputeTotals(lines, in.Charges, in.ClientTotal)
	if err != nil {
		return nil, err
	}
	if err := totals.Verify(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.opt.OrderNumberMaxAttempts; attempt++ {
		ord, err := s.persistOrder(ctx, id, in, lines, totals)
		if err == nil {
			return ord, nil
		}
		if errors.Is(err, errOrderNumberTaken) || repository.IsUniqueViolation(err, repository.OrderNumberConstraint) {
			s.log.Warn("order number collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		return nil, &CreationFailedError{Cause: mapStoreErr(err)}
	}
	return nil, &CreationFailedError{Cause: ErrOrderNumberExhausted}
}

// persistOrder writes the order, its items and stock reservations in one
// transaction.
func (s *orderService) persistOrder(ctx context.Context, id Identity, in CreateOrderInput, lines []ValidatedLine, totals Totals) (*models.Order, error) {
	now := s.now().UTC()
	number, err := s.numbers.Next(now)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *repository.Repository) error {
		taken, err := tx.Orders.ExistsByNumber(ctx, number)
		if err != nil {
			return err
		}
		if taken {
			return errOrderNumberTaken
		}

		ord := buildOrder(number, id, in, totals, now)
		if err := tx.Orders.Create(ctx, ord); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, models.OrderItem{
				OrderID:     ord.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				ProductSKU:  l.ProductSKU,
				UnitPrice:   l.UnitPrice,
				Quantity:    l.Quantity,
				TotalPrice:  l.TotalPrice,
				CreatedAt:   now,
			})
		}
		if err := tx.OrderItems.BulkCreate(ctx, items); err != nil {
			return err
		}

		if s.opt.ReserveStock {
			for _, l := range lines {
				ok, err := tx.Products.Reserve(ctx, l.ProductID, l.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: product %s", ErrOutOfStock, l.ProductID)
				}
			}
		}

		sum, err := tx.OrderItems.SumByOrder(ctx, ord.ID)
		if err != nil {
			return err
		}
		if !withinTolerance(sum, ord.Subtotal) {
			return errSubtotalDrift
		}

		ord.Items = items
		created = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func buildOrder(number string, id Identity, in CreateOrderInput, t Totals, now time.Time) *models.Order {
	ord := &models.Order{
		OrderNumber:           number,
		CustomerEmail:         in.Customer.Email,
		CustomerFirstName:     in.Customer.FirstName,
		CustomerLastName:      in.Customer.LastName,
		CustomerPhone:         in.Customer.Phone,
		ShippingAddress:       in.ShippingAddress,
		BillingSameAsShipping: in.BillingSameAsShipping,
		Subtotal:              t.Subtotal,
		ShippingCost:          t.ShippingCost,
		TaxAmount:             t.TaxAmount,
		DiscountAmount:        t.DiscountAmount,
		TotalAmount:           t.TotalAmount,
		Status:                models.OrderStatusPending,
		PaymentStatus:         models.PaymentStatusPending,
		PaymentMethod:         in.PaymentMethod,
		ShippingMethod:        in.ShippingMethod,
		CustomerNotes:         in.CustomerNotes,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if !id.IsGuest() {
		uid := id.UserID
		ord.UserID = &uid
	}
	if in.BillingAddress != nil {
		ord.BillingAddress = *in.BillingAddress
	}
	return ord
}

func (s *orderService) afterCreate(ctx context.Context, ord *models.Order) {
	ctx = context.WithoutCancel(ctx)
	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, orderCreatedEvent(ord)); err != nil {
			s.log.Error("failed to publish order created", zap.String("order_number", ord.OrderNumber), zap.Error(err))
		}
	}
	if s.emails != nil {
		if err := s.emails.SendEmail(ctx, ord.OrderNumber, orderConfirmationEmail(ord)); err != nil {
			s.log.Error("failed to queue confirmation email", zap.String("order_number", ord.OrderNumber), zap.Error(err))
		}
	}
}

func (s *orderService) loadByNumber(ctx context.Context, number string) (*models.Order, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	ord, err := s.repo.Orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if ord == nil {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

// orderUpdate is what a planner wants written for one attempt.
type orderUpdate struct {
	fields  map[string]any
	noop    bool
	restock bool
	status  *StatusChange
	payment *[2]models.PaymentStatus
}

type planner func(ord *models.Order) (orderUpdate, error)

// mutateOrder is the read-modify-write loop behind every order mutation.
// The write is guarded by the version read in the same attempt. When the
// guard fails and the winner changed a status, the caller gets a conflict
// naming the winner's status; other concurrent edits are re-planned.
func (s *orderService) mutateOrder(ctx context.Context, number string, plan planner) (*models.Order, orderUpdate, error) {
	var (
		firstStatus  models.OrderStatus
		firstPayment models.PaymentStatus
	)
	for attempt := 0; attempt <= s.opt.MaxConflictRetries; attempt++ {
		ord, err := s.loadByNumber(ctx, number)
		if err != nil {
			return nil, orderUpdate{}, err
		}
		if attempt == 0 {
			firstStatus, firstPayment = ord.Status, ord.PaymentStatus
		} else if ord.Status != firstStatus || ord.PaymentStatus != firstPayment {
			return nil, orderUpdate{}, &ConflictStateError{Err: ErrConcurrentUpdate, Current: ord.Status}
		}

		upd, err := plan(ord)
		if err != nil {
			return nil, orderUpdate{}, err
		}
		if upd.noop || len(upd.fields) == 0 {
			upd.noop = true
			return ord, upd, nil
		}

		err = s.applyUpdate(ctx, ord, upd)
		if errors.Is(err, errVersionMismatch) {
			s.log.Debug("order version changed, re-reading", zap.String("order_number", number), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, orderUpdate{}, mapStoreErr(err)
		}

		fresh, err := s.loadByNumber(ctx, number)
		if err != nil {
			return nil, orderUpdate{}, err
		}
		return fresh, upd, nil
	}
	return nil, orderUpdate{}, ErrConcurrentUpdate
}

func (s *orderService) applyUpdate(ctx context.Context, ord *models.Order, upd orderUpdate) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.tx.WithTx(ctx, func(tx *repository.Repository) error {
		ok, err := tx.Orders.UpdateWithVersion(ctx, ord.ID, ord.Version, upd.fields)
		if err != nil {
			return err
		}
		if !ok {
			return errVersionMismatch
		}
		if upd.restock && s.opt.ReserveStock {
			for _, it := range ord.Items {
				if _, err := tx.Products.Restock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *orderService) statusPlan(target models.OrderStatus, mode TransitionMode, extra func(ord *models.Order, fields map[string]any)) planner {
	return func(ord *models.Order) (orderUpdate, error) {
		change, err := PlanOrderTransition(ord, target, mode, s.opt.Transitions, s.now().UTC())
		if err != nil {
			return orderUpdate{}, err
		}
		fields := map[string]any{}
		if !change.NoOp {
			fields["status"] = change.To
		}
		if change.ShippedAt != nil {
			fields["shipped_at"] = *change.ShippedAt
		}
		if change.DeliveredAt != nil {
			fields["delivered_at"] = *change.DeliveredAt
		}
		if extra != nil {
			extra(ord, fields)
		}
		return orderUpdate{
			fields:  fields,
			noop:    len(fields) == 0,
			restock: change.releasesStock(),
			status:  &change,
		}, nil
	}
}

func appendNote(existing *string, note string) string {
	if existing == nil || *existing == "" {
		return note
	}
	return *existing + "\n" + note
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, in UpdateStatusInput) (*models.Order, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	mode := ModeStandard
	if in.Override {
		mode = ModeOverride
	}
	tracking := trimPtr(in.TrackingNumber)
	note := trimPtr(in.Note)

	ord, upd, err := s.mutateOrder(ctx, in.OrderNumber, s.statusPlan(in.Status, mode, func(ord *models.Order, fields map[string]any) {
		if tracking != nil {
			fields["tracking_number"] = *tracking
		}
		if note != nil {
			fields["admin_notes"] = appendNote(ord.AdminNotes, *note)
		}
	}))
	if err != nil {
		s.log.Info("order status update rejected",
			zap.String("order_number", in.OrderNumber),
			zap.String("target", string(in.Status)),
			zap.Bool("override", in.Override),
			zap.Error(err))
		return nil, err
	}

	if !upd.noop && upd.status != nil && !upd.status.NoOp {
		s.log.Info("order status changed",
			zap.String("order_number", ord.OrderNumber),
			zap.String("from", string(upd.status.From)),
			zap.String("to", string(upd.status.To)),
			zap.Bool("override", in.Override),
			zap.String("by", admin.UserID.String()))
		reason := ""
		if note != nil {
			reason = *note
		}
		s.publishStatusChanged(ctx, ord, *upd.status, reason)
	}
	return ord, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderNumber string, reason *string) (*models.Order, error) {
	id, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	r := sanitizeReason(reason)

	ord, upd, err := s.mutateOrder(ctx, orderNumber, func(ord *models.Order) (orderUpdate, error) {
		if !id.IsAdmin() && !ord.IsOwnedBy(id.UserID) {
			return orderUpdate{}, ErrOrderNotFound
		}
		if !id.IsAdmin() && !ord.Status.IsTerminal() && !customerCancellable(ord.Status) {
			return orderUpdate{}, fmt.Errorf("%w: %s orders can no longer be cancelled", ErrInvalidTransition, ord.Status)
		}
		return s.statusPlan(models.OrderStatusCancelled, ModeStandard, func(ord *models.Order, fields map[string]any) {
			note := "cancelled by customer"
			if id.IsAdmin() {
				note = "cancelled by admin"
			}
			if r != "" {
				note += ": " + r
			}
			fields["admin_notes"] = appendNote(ord.AdminNotes, note)
		})(ord)
	})
	if err != nil {
		return nil, err
	}
	if upd.status != nil && !upd.status.NoOp {
		s.log.Info("order cancelled", zap.String("order_number", ord.OrderNumber), zap.Bool("by_admin", id.IsAdmin()))
		s.publishStatusChanged(ctx, ord, *upd.status, r)
	}
	return ord, nil
}

func sanitizeReason(reason *string) string {
	if reason == nil {
		return ""
	}
	r := strings.TrimSpace(*reason)
	if len(r) > 500 {
		r = r[:500]
	}
	return r
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, in UpdatePaymentInput) (*models.Order, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	ord, upd, err := s.mutateOrder(ctx, in.OrderNumber, func(ord *models.Order) (orderUpdate, error) {
		noop, err := PlanPaymentTransition(ord.PaymentStatus, in.Status)
		if err != nil {
			return orderUpdate{}, err
		}
		fields := map[string]any{}
		if !noop {
			fields["payment_status"] = in.Status
		}
		// stored verbatim
		if in.Reference != nil && *in.Reference != "" {
			fields["payment_reference"] = *in.Reference
		}
		return orderUpdate{
			fields:  fields,
			payment: &[2]models.PaymentStatus{ord.PaymentStatus, in.Status},
			noop:    len(fields) == 0,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if !upd.noop && upd.payment != nil && upd.payment[0] != upd.payment[1] {
		s.log.Info("payment status changed",
			zap.String("order_number", ord.OrderNumber),
			zap.String("from", string(upd.payment[0])),
			zap.String("to", string(upd.payment[1])))
		if s.events != nil {
			err := s.events.PublishPaymentStatusChanged(context.WithoutCancel(ctx), producer.PaymentStatusChangedEvent{
				OrderNumber: ord.OrderNumber,
				From:        upd.payment[0],
				To:          upd.payment[1],
				Reference:   ord.PaymentReference,
				ChangedAt:   s.now().UTC(),
			})
			if err != nil {
				s.log.Error("failed to publish payment status change", zap.String("order_number", ord.OrderNumber), zap.Error(err))
			}
		}
	}
	return ord, nil
}

func (s *orderService) UpdateFulfillment(ctx context.Context, in UpdateFulfillmentInput) (*models.Order, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	tracking := trimPtr(in.TrackingNumber)
	method := trimPtr(in.ShippingMethod)

	ord, _, err := s.mutateOrder(ctx, in.OrderNumber, func(ord *models.Order) (orderUpdate, error) {
		fields := map[string]any{}
		if tracking != nil || method != nil {
			if ord.Status.IsTerminal() {
				return orderUpdate{}, fmt.Errorf("%w: %s", ErrTerminalState, ord.Status)
			}
			if tracking != nil {
				fields["tracking_number"] = *tracking
			}
			if method != nil {
				fields["shipping_method"] = *method
			}
		}
		// admin notes are replaced as a whole; an empty string clears them
		if in.AdminNotes != nil {
			if v := strings.TrimSpace(*in.AdminNotes); v == "" {
				fields["admin_notes"] = nil
			} else {
				fields["admin_notes"] = v
			}
		}
		return orderUpdate{fields: fields}, nil
	})
	return ord, err
}

func (s *orderService) DeleteOrder(ctx context.Context, orderNumber string) error {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	ord, err := s.loadByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	dctx, cancel := s.storeCtx(ctx)
	defer cancel()
	deleted, err := s.repo.Orders.Delete(dctx, ord.ID)
	if err != nil {
		return mapStoreErr(err)
	}
	if !deleted {
		return ErrOrderNotFound
	}
	s.log.Info("order erased", zap.String("order_number", orderNumber), zap.String("by", admin.UserID.String()))
	return nil
}

func (s *orderService) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	lctx, cancel := s.storeCtx(ctx)
	stale, err := s.repo.Orders.ListStalePending(lctx, cutoff, 100)
	cancel()
	if err != nil {
		return 0, mapStoreErr(err)
	}

	expired := 0
	for _, o := range stale {
		ord, upd, err := s.mutateOrder(ctx, o.OrderNumber, func(ord *models.Order) (orderUpdate, error) {
			if ord.Status != models.OrderStatusPending || ord.PaymentStatus == models.PaymentStatusPaid {
				return orderUpdate{noop: true}, nil
			}
			return s.statusPlan(models.OrderStatusCancelled, ModeStandard, func(ord *models.Order, fields map[string]any) {
				fields["admin_notes"] = appendNote(ord.AdminNotes, "expired: unpaid")
			})(ord)
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return expired, err
		}
		if upd.status != nil && !upd.status.NoOp {
			expired++
			s.publishStatusChanged(ctx, ord, *upd.status, "expired")
		}
	}
	if expired > 0 {
		s.log.Info("expired stale pending orders", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *orderService) publishStatusChanged(ctx context.Context, ord *models.Order, change StatusChange, reason string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishOrderStatusChanged(context.WithoutCancel(ctx), producer.OrderStatusChangedEvent{
		OrderNumber: ord.OrderNumber,
		UserID:      ord.UserID,
		From:        change.From,
		To:          change.To,
		Reason:      reason,
		ChangedAt:   s.now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to publish status change", zap.String("order_number", ord.OrderNumber), zap.Error(err))
	}
}
