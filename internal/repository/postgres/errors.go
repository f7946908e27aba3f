package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// uniqueViolation reports whether err is a PostgreSQL unique constraint
// violation and, when the driver exposes it, the violated constraint name.
func uniqueViolation(err error) (constraint string, ok bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == uniqueViolationCode
	}
	return "", strings.Contains(err.Error(), uniqueViolationCode)
}
