package storage

import (
	"errors"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
)

var (
	// ErrNotFound means no job, result, bar range or rate matches the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means a result with the same run id is already stored.
	// Results are append-only; rerunning an identical request is a no-op.
	ErrDuplicateKey = errors.New("duplicate run id")

	// ErrInvalidInput means a record is missing its key or holds an unusable value.
	ErrInvalidInput = errors.New("invalid storage record")
)

// ValidateBar rejects bars that cannot be keyed or priced.
func ValidateBar(b domain.PriceBar) error {
	if strings.TrimSpace(b.Ticker) == "" || b.Date.IsZero() || !(b.Close > 0) {
		return ErrInvalidInput
	}
	return nil
}

// Day truncates t to its UTC calendar day, the key granularity of bars and rates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
