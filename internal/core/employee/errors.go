package employee

import "github.com/ogurasousui/onboarding-compliance/internal/core/failure"

var (
	ErrInvalidID                 = failure.Validation("employee: invalid id")
	ErrInvalidName               = failure.Validation("employee: invalid name")
	ErrInvalidDocument           = failure.Validation("employee: invalid document number")
	ErrInvalidCompanyID          = failure.Validation("employee: invalid company id")
	ErrInvalidContractID         = failure.Validation("employee: invalid contract id")
	ErrInvalidPageSize           = failure.Validation("employee: invalid page size")
	ErrInvalidPageToken          = failure.Validation("employee: invalid page token")
	ErrContractCompanyMismatch   = failure.Validation("employee: contract belongs to another company")
	ErrEmployeeNotFound          = failure.NotFound("employee: not found")
	ErrDocumentAlreadyRegistered = failure.StateConflict("employee: document already registered for company")
)
