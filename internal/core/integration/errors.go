package integration

import (
	"fmt"
	"strings"

	"github.com/ogurasousui/onboarding-compliance/internal/core/failure"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
)

var (
	ErrInvalidScheduleDay     = failure.PolicyViolation("integration: scheduling day not allowed")
	ErrDocsPending            = failure.PolicyViolation("integration: required documents pending")
	ErrNotScheduled           = failure.StateConflict("integration: employee is not scheduled")
	ErrAlreadyApproved        = failure.StateConflict("integration: employee already approved")
	ErrMissingExamDate        = failure.Validation("integration: scheduled entry has no exam date")
	ErrMissingIntegrationDate = failure.Validation("integration: scheduled entry has no integration date")
	ErrInvalidEmployeeIDs     = failure.Validation("integration: at least one employee id is required")
	ErrInvalidDate            = failure.Validation("integration: invalid integration date")
	ErrInvalidValidityDays    = failure.Validation("integration: validity days must be positive")
	ErrUnauthenticated        = failure.PermissionDenied("integration: no authenticated principal")
	ErrCannotEditEmployees    = failure.PermissionDenied("integration: principal may not edit employees")
	ErrNotApprover            = failure.PermissionDenied("integration: principal is not an integration approver")
	ErrForeignEmployee        = failure.PermissionDenied("integration: employee belongs to another company")
)

// TransitionError は状態遷移が拒否された社員と、期待した状態・実際の状態を保持します。
type TransitionError struct {
	EmployeeID string
	Expected   []ledger.IntegrationStatus
	Actual     ledger.IntegrationStatus
	Pending    []string
	Rejected   []string
	Err        error
}

func (e *TransitionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "employee %s: %v", e.EmployeeID, e.Err)
	if e.Actual != "" {
		fmt.Fprintf(&b, " (current %s", e.Actual)
		if len(e.Expected) > 0 {
			fmt.Fprintf(&b, ", expected %v", e.Expected)
		}
		b.WriteString(")")
	}
	if len(e.Pending) > 0 {
		fmt.Fprintf(&b, " pending=%v", e.Pending)
	}
	if len(e.Rejected) > 0 {
		fmt.Fprintf(&b, " rejected=%v", e.Rejected)
	}
	return b.String()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
