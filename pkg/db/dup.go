package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err was caused by a unique-constraint
// conflict on insert. Duplicate inserts are a typed outcome for callers,
// not an incidental failure: idempotency gates rely on this check.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	// sqlite (tests) reports constraint conflicts by message only.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
