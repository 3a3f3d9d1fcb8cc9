package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgTooManyConnections   = "53300"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
)

// OrderNumberConstraint is the unique index guarding public order numbers.
const OrderNumberConstraint = "ux_orders_order_number"

func pgCode(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// IsUniqueViolation reports a unique violation; an empty constraint matches any.
func IsUniqueViolation(err error, constraint string) bool {
	code, name, ok := pgCode(err)
	if !ok || code != pgUniqueViolation {
		return false
	}
	return constraint == "" || name == constraint
}

// IsConcurrencyConflict is true for serialization failures and deadlocks.
func IsConcurrencyConflict(err error) bool {
	code, _, ok := pgCode(err)
	return ok && (code == pgSerializationFailure || code == pgDeadlockDetected)
}

// IsUnavailable classifies timeouts, lock waits and connectivity loss.
// Callers may retry these.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	code, _, ok := pgCode(err)
	if !ok {
		return false
	}
	switch code {
	case pgLockNotAvailable, pgQueryCanceled, pgTooManyConnections, pgAdminShutdown, pgCannotConnectNow:
		return true
	}
	return false
}
