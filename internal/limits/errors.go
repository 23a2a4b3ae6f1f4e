// Package limits measures tenant usage and enforces plan quotas.
//
// Enforcement is a soft limit: the check and the write that follows are not
// serialized, so concurrent requests near a boundary may overshoot it by the
// number of requests in flight.
package limits

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistenceFailure marks usage that could not be read. Callers must
	// deny, never treat it as zero usage.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrUnknownPlan        = errors.New("unknown plan tier")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrQuotaDenied        = errors.New("quota denied")
)

// Dimension is a quota-bounded resource.
type Dimension string

const (
	DimensionUsers   Dimension = "users"
	DimensionOrders  Dimension = "orders"
	DimensionStorage Dimension = "storage"
)

// QuotaExceededError is the denial of an operation. Current and Max are in
// the dimension's unit: seats, orders this month, or bytes.
type QuotaExceededError struct {
	Dimension Dimension
	Current   int64
	Max       int64
	Message   string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d", e.Dimension, e.Current, e.Max)
}
