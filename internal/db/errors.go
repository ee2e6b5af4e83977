package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// Classify maps pgx errors onto domain sentinels so callers can use errors.Is.
// Unknown errors pass through wrapped with op.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, models.ErrConflict, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, models.ErrNotFound, pgErr.ConstraintName)
		case checkViolation:
			return fmt.Errorf("%s: %w (%s)", op, models.ErrValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
