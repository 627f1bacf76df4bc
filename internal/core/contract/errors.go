package contract

import "github.com/ogurasousui/onboarding-compliance/internal/core/failure"

var (
	// ErrContractNotFound は契約が存在しない場合に返却されます。
	ErrContractNotFound = failure.NotFound("contract: not found")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = failure.Validation("contract: invalid id")
	// ErrInvalidName は契約名が不正な場合に返却されます。
	ErrInvalidName = failure.Validation("contract: invalid name")
	// ErrInvalidCompanyID は会社 ID が不正な場合に返却されます。
	ErrInvalidCompanyID = failure.Validation("contract: invalid company id")
	// ErrInvalidDateRange は契約期間が不正な場合に返却されます。
	ErrInvalidDateRange = failure.Validation("contract: invalid contract period")
	// ErrInvalidStatus はステータスが不正な場合に返却されます。
	ErrInvalidStatus = failure.Validation("contract: invalid status")
)
