package settlement

import "errors"

// Pre-commit validation errors. Each maps to a specific operator-facing
// message in the HTTP layer; none of them writes anything.
var (
	ErrNoFunds          = errors.New("no funds available to allocate")
	ErrNothingAllocated = errors.New("no invoice amounts have been allocated")
	ErrOverAllocated    = errors.New("allocated total exceeds available funds")
)

// ErrConcurrentSettlement means another commit changed a funding source's
// balance between our read and our conditional write. The whole transaction
// rolls back; the operator can safely retry.
var ErrConcurrentSettlement = errors.New("funding source changed by a concurrent settlement")
