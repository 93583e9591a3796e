package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateStringTooLong       = "22001"
	sqlStateNumericOutOfRange   = "22003"
)

// IsNoRows reports whether err means a single-row query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// UniqueViolation returns the violated constraint name when err is a
// PostgreSQL unique violation.
func UniqueViolation(err error) (string, bool) {
	return constraintFor(err, sqlStateUniqueViolation)
}

// ForeignKeyViolation returns the violated constraint name when err is a
// PostgreSQL foreign key violation.
func ForeignKeyViolation(err error) (string, bool) {
	return constraintFor(err, sqlStateForeignKeyViolation)
}

// CheckViolation returns the violated constraint name when err is a
// PostgreSQL check constraint violation.
func CheckViolation(err error) (string, bool) {
	return constraintFor(err, sqlStateCheckViolation)
}

// ValueTooLarge reports whether err is a PostgreSQL data exception raised by
// a string longer than its column or a number outside its precision. The
// returned column is empty when the server did not name one.
func ValueTooLarge(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case sqlStateStringTooLong, sqlStateNumericOutOfRange:
		return pgErr.ColumnName, true
	}
	return "", false
}

func constraintFor(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
