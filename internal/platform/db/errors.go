package db

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// IsSerializationFailure reports a write conflict the server resolved by
// aborting this transaction (40001) or a deadlock victim (40P01).
func IsSerializationFailure(err error) bool {
	pgErr := pgError(err)
	if pgErr == nil {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func IsUniqueViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == pgerrcode.UniqueViolation
}

func IsCheckViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == pgerrcode.CheckViolation
}

func IsForeignKeyViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// IsTimeout covers client-side deadlines and server-side statement cancellation.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == pgerrcode.QueryCanceled
}

// ConstraintName returns the violated constraint, or "".
func ConstraintName(err error) string {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.ConstraintName
	}
	return ""
}
