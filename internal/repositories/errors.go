package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrConstraint indicates the write broke a check constraint, such as a self subscription.
	ErrConstraint = errors.New("constraint violation")
	// ErrStale indicates a compare-and-swap update lost against a concurrent writer.
	ErrStale = errors.New("stale write")
)

// classify maps PostgreSQL error codes onto the package sentinels.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		case "23514":
			return ErrConstraint
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
