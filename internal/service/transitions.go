package service

import (
	"fmt"
	"time"

	"storefront-order-service/internal/models"
)

// TransitionMode separates the regular fulfillment path from the admin
// override that may skip forward steps.
type TransitionMode int

const (
	ModeStandard TransitionMode = iota
	ModeOverride
)

// TransitionPolicy holds the configurable parts of the lifecycle rules.
type TransitionPolicy struct {
	BlockDeliveryOnFailedPayment bool
}

func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{BlockDeliveryOnFailedPayment: true}
}

var fulfillmentStep = map[models.OrderStatus]int{
	models.OrderStatusPending:    0,
	models.OrderStatusConfirmed:  1,
	models.OrderStatusProcessing: 2,
	models.OrderStatusShipped:    3,
	models.OrderStatusDelivered:  4,
}

// StatusChange is the outcome of a planned order transition. Timestamp fields
// are non-nil only when this transition stamps them.
type StatusChange struct {
	From        models.OrderStatus
	To          models.OrderStatus
	NoOp        bool
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}

func (c StatusChange) releasesStock() bool {
	return !c.NoOp && c.To.IsTerminal()
}

// PlanOrderTransition decides whether ord may move to target. It does not
// mutate ord.
func PlanOrderTransition(ord *models.Order, target models.OrderStatus, mode TransitionMode, policy TransitionPolicy, now time.Time) (StatusChange, error) {
	from := ord.Status
	change := StatusChange{From: from, To: target}

	if !target.Valid() {
		return change, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if from.IsTerminal() {
		return change, fmt.Errorf("%w: %s", ErrTerminalState, from)
	}
	if from == target {
		change.NoOp = true
		return change, nil
	}

	switch target {
	case models.OrderStatusCancelled, models.OrderStatusRefunded:
		return change, nil
	case models.OrderStatusDelivered:
		if ord.ShippedAt == nil {
			return change, fmt.Errorf("%w: %s -> %s: order was never shipped", ErrInvalidTransition, from, target)
		}
		if policy.BlockDeliveryOnFailedPayment && ord.PaymentStatus == models.PaymentStatusFailed {
			return change, ErrPaymentFailed
		}
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing, models.OrderStatusShipped:
	}

	if err := checkStep(from, target, mode); err != nil {
		return change, err
	}

	if target == models.OrderStatusShipped && ord.ShippedAt == nil {
		t := now
		change.ShippedAt = &t
	}
	if target == models.OrderStatusDelivered {
		t := now
		change.DeliveredAt = &t
	}
	return change, nil
}

func checkStep(from, to models.OrderStatus, mode TransitionMode) error {
	fi, okFrom := fulfillmentStep[from]
	ti, okTo := fulfillmentStep[to]
	if !okFrom || !okTo {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	switch {
	case ti == fi+1:
		return nil
	case ti > fi+1 && mode == ModeOverride:
		return nil
	case ti > fi+1:
		return fmt.Errorf("%w: %s -> %s skips steps", ErrInvalidTransition, from, to)
	default:
		return fmt.Errorf("%w: %s -> %s moves backwards", ErrInvalidTransition, from, to)
	}
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusPending:  {models.PaymentStatusPaid, models.PaymentStatusFailed},
	models.PaymentStatusFailed:   {models.PaymentStatusPending, models.PaymentStatusPaid},
	models.PaymentStatusPaid:     {models.PaymentStatusRefunded},
	models.PaymentStatusRefunded: nil,
}

// PlanPaymentTransition reports whether the move is a no-op or rejects it.
func PlanPaymentTransition(from, to models.PaymentStatus) (noop bool, err error) {
	if !to.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return true, nil
	}
	if from == models.PaymentStatusRefunded {
		return false, fmt.Errorf("%w: payment %s", ErrTerminalState, from)
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
}

// customerCancellable lists the statuses an owner may cancel from.
func customerCancellable(s models.OrderStatus) bool {
	return s == models.OrderStatusPending || s == models.OrderStatusConfirmed
}
