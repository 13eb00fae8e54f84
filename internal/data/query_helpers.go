package data

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pqUniqueViolationCode = "23505"

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation, which the data layer surfaces as ErrRecordAlreadyExists so
// idempotency collisions can be detected without string matching.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolationCode
}

// isCheckViolation reports whether the error is a Postgres check constraint
// violation on the named constraint. An empty name matches any check.
func isCheckViolation(err error, constraintName string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23514" {
		return false
	}
	return constraintName == "" || pqErr.Constraint == constraintName
}

func checkSingleRowAffected(result sql.Result) error {
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrRecordNotFound
	}
	if numRowsAffected > 1 {
		return ErrMismatchNumRowsAffected
	}
	return nil
}
