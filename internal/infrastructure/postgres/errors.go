package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// constraint failure, such as a payment referencing an invoice that was
// never synced.
func IsForeignKeyViolation(err error) bool {
	return pqErrorCode(err) == pqForeignKeyViolation
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// failure.
func IsUniqueViolation(err error) bool {
	return pqErrorCode(err) == pqUniqueViolation
}

func pqErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}
