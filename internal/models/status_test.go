package models

import (
	"errors"
	"testing"
)

func TestParseOrderStatus(t *testing.T) {
	for _, st := range AllOrderStatuses {
		got, err := ParseOrderStatus(string(st))
		if err != nil || got != st {
			t.Fatalf("ParseOrderStatus(%q) = %q, %v", st, got, err)
		}
	}

	got, err := ParseOrderStatus("  Shipped ")
	if err != nil || got != OrderStatusShipped {
		t.Fatalf("expected shipped, got %q %v", got, err)
	}

	if _, err := ParseOrderStatus("teleported"); !errors.Is(err, ErrUnknownOrderStatus) {
		t.Fatalf("expected ErrUnknownOrderStatus, got %v", err)
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if _, err := ParsePaymentStatus("paid"); err != nil {
		t.Fatalf("paid: %v", err)
	}
	if _, err := ParsePaymentStatus("chargeback"); !errors.Is(err, ErrUnknownPaymentStatus) {
		t.Fatalf("expected ErrUnknownPaymentStatus, got %v", err)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusCancelled: true,
		OrderStatusRefunded:  true,
	}
	for _, st := range AllOrderStatuses {
		if st.IsTerminal() != terminal[st] {
			t.Errorf("%s: IsTerminal=%v", st, st.IsTerminal())
		}
	}
}
