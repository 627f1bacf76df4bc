package ledger

import "github.com/ogurasousui/onboarding-compliance/internal/core/failure"

var (
	ErrInvalidEmployeeID      = failure.Validation("ledger: invalid employee id")
	ErrInvalidStatus          = failure.Validation("ledger: invalid status")
	ErrInvalidKind            = failure.Validation("ledger: invalid entry kind")
	ErrInvalidPageSize        = failure.Validation("ledger: invalid page size")
	ErrInvalidPageToken       = failure.Validation("ledger: invalid page token")
	ErrNoEntries              = failure.NotFound("ledger: no status entries for employee")
	ErrConcurrentModification = failure.StateConflict("ledger: employee status changed concurrently")
)
