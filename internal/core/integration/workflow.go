package integration

import (
	"context"
	"strings"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
)

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// StatusLedger は現在状態の参照と追記を提供します。
type StatusLedger interface {
	CurrentStatus(ctx context.Context, employeeID string) (*ledger.StatusEntry, error)
	AppendStatus(ctx context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error)
}

// EmployeeDirectory は社員の参照を提供します。
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error)
}

// DocumentCompliance は書類の充足判定と提出書類の操作を提供します。
type DocumentCompliance interface {
	Evaluate(ctx context.Context, employeeID, contractID string) (compliance.Result, error)
	GetAttachment(ctx context.Context, attachmentID string) (*compliance.Attachment, error)
	UploadAttachment(ctx context.Context, in compliance.UploadInput) (*compliance.Attachment, error)
	ReviewAttachment(ctx context.Context, in compliance.ReviewInput) (*compliance.Attachment, error)
	JustifyAttachment(ctx context.Context, in compliance.JustifyInput) (*compliance.Attachment, error)
}

// Workflow は予約・出席確認・承認の状態遷移をまとめます。
// 現在状態は常に StatusLedger.CurrentStatus から取得し、遷移は追記でのみ表現します。
type Workflow struct {
	statuses  StatusLedger
	employees EmployeeDirectory
	docs      DocumentCompliance
	policy    Policy
	tx        TransactionManager
	observer  ledger.TransitionObserver
}

// NewWorkflow は Workflow を生成します。
func NewWorkflow(statuses StatusLedger, employees EmployeeDirectory, docs DocumentCompliance, policy Policy, tx TransactionManager) *Workflow {
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Workflow{
		statuses:  statuses,
		employees: employees,
		docs:      docs,
		policy:    policy.normalized(),
		tx:        tx,
		observer:  ledger.NopObserver{},
	}
}

// WithObserver はコミット済みの遷移を通知する observer を設定します。
func (w *Workflow) WithObserver(observer ledger.TransitionObserver) *Workflow {
	if observer != nil {
		w.observer = observer
	}
	return w
}

// Policy は正規化済みの設定を返します。
func (w *Workflow) Policy() Policy {
	return w.policy
}

// ScheduleInput は予約時の入力です。Assignment の設定済み項目は直前のエントリの値を上書きします。
type ScheduleInput struct {
	EmployeeIDs             []string
	Date                    time.Time
	ExamDate                *time.Time
	ExamValidityDays        *int
	IntegrationValidityDays *int
	Justification           string
	Assignment              ledger.Assignment
}

// ConfirmInput は出席確認時の入力です。日数は省略時に予約時の値、既定値の順で補完します。
type ConfirmInput struct {
	EmployeeID              string
	ExamValidityDays        *int
	IntegrationValidityDays *int
}

// ApproveInput は承認時の入力です。
type ApproveInput struct {
	EmployeeID string
}

// AttachmentResult は書類操作の結果と、それに伴う自動昇格エントリです。
type AttachmentResult struct {
	Attachment *compliance.Attachment
	Promotion  *ledger.StatusEntry
}

// Schedule は社員をインテグレーションに予約します。1 人でも失敗した場合は誰も予約されません。
func (w *Workflow) Schedule(ctx context.Context, in ScheduleInput) ([]*ledger.StatusEntry, error) {
	principal, err := requireEditor(ctx)
	if err != nil {
		return nil, err
	}

	employeeIDs := uniqueIDs(in.EmployeeIDs)
	if len(employeeIDs) == 0 {
		return nil, ErrInvalidEmployeeIDs
	}
	if in.Date.IsZero() {
		return nil, ErrInvalidDate
	}
	if err := validateDays(in.ExamValidityDays, in.IntegrationValidityDays); err != nil {
		return nil, err
	}

	date := ledger.DateOnly(in.Date)
	justification := strings.TrimSpace(in.Justification)
	if !w.policy.Allows(date.Weekday()) && justification == "" {
		return nil, ErrInvalidScheduleDay
	}

	var examDate *time.Time
	if in.ExamDate != nil {
		d := ledger.DateOnly(*in.ExamDate)
		examDate = &d
	}

	var appended []*ledger.StatusEntry
	if err := w.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		pending := make([]*ledger.StatusEntry, 0, len(employeeIDs))
		for _, id := range employeeIDs {
			emp, current, err := w.load(txCtx, principal, id)
			if err != nil {
				return err
			}

			if current.Kind != ledger.KindInitialApproval {
				result, err := w.docs.Evaluate(txCtx, emp.ID, emp.ContractID)
				if err != nil {
					return err
				}
				if !result.IsReady {
					return &TransitionError{
						EmployeeID: emp.ID,
						Actual:     current.IntegrationStatus,
						Pending:    result.Pending,
						Rejected:   result.Rejected,
						Err:        ErrDocsPending,
					}
				}
			}

			next := current.Carry()
			next.IntegrationStatus = ledger.IntegrationScheduled
			next.Kind = ledger.KindScheduling
			next.Assignment = mergeAssignment(current.Assignment, in.Assignment)
			next.IntegrationDate = &date
			next.ExamDate = cloneTime(examDate)
			next.ExamValidityDays = cloneInt(in.ExamValidityDays)
			next.IntegrationValidityDays = cloneInt(in.IntegrationValidityDays)
			next.ExamExpiryDate = nil
			next.IntegrationExpiryDate = nil
			next.SchedulingJustification = justification
			pending = append(pending, next)
		}

		appended = make([]*ledger.StatusEntry, 0, len(pending))
		for _, entry := range pending {
			saved, err := w.statuses.AppendStatus(txCtx, entry)
			if err != nil {
				return err
			}
			appended = append(appended, saved)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	w.observe(appended...)
	return appended, nil
}

// ConfirmAttendance は予約済みの社員の出席を確認し、ASO とインテグレーションの有効期限を計算します。
func (w *Workflow) ConfirmAttendance(ctx context.Context, in ConfirmInput) (*ledger.StatusEntry, error) {
	principal, err := requireApprover(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateDays(in.ExamValidityDays, in.IntegrationValidityDays); err != nil {
		return nil, err
	}

	var appended *ledger.StatusEntry
	if err := w.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		_, current, err := w.load(txCtx, principal, in.EmployeeID)
		if err != nil {
			return err
		}

		if current.IntegrationStatus != ledger.IntegrationScheduled {
			return &TransitionError{
				EmployeeID: current.EmployeeID,
				Expected:   []ledger.IntegrationStatus{ledger.IntegrationScheduled},
				Actual:     current.IntegrationStatus,
				Err:        ErrNotScheduled,
			}
		}
		if current.ExamDate == nil {
			return &TransitionError{EmployeeID: current.EmployeeID, Actual: current.IntegrationStatus, Err: ErrMissingExamDate}
		}
		if current.IntegrationDate == nil {
			return &TransitionError{EmployeeID: current.EmployeeID, Actual: current.IntegrationStatus, Err: ErrMissingIntegrationDate}
		}

		examDays := firstPositive(in.ExamValidityDays, current.ExamValidityDays, w.policy.DefaultExamValidityDays)
		integrationDays := firstPositive(in.IntegrationValidityDays, current.IntegrationValidityDays, w.policy.DefaultIntegrationValidityDays)

		examExpiry := current.ExamDate.AddDate(0, 0, examDays)
		integrationExpiry := current.IntegrationDate.AddDate(0, 0, integrationDays)

		next := current.Carry()
		next.IntegrationStatus = ledger.IntegrationRealized
		next.Kind = ledger.KindAttendanceConfirmed
		next.ExamValidityDays = &examDays
		next.IntegrationValidityDays = &integrationDays
		next.ExamExpiryDate = &examExpiry
		next.IntegrationExpiryDate = &integrationExpiry

		saved, err := w.statuses.AppendStatus(txCtx, next)
		if err != nil {
			return err
		}
		appended = saved
		return nil
	}); err != nil {
		return nil, err
	}

	w.observe(appended)
	return appended, nil
}

// Approve は社員を承認します。書類が揃っていれば APPROVED、揃っていなければ
// APPROVED_WITH_PENDING_DOCS を追記します。どちらも既に適用済みなら ErrAlreadyApproved です。
func (w *Workflow) Approve(ctx context.Context, in ApproveInput) (*ledger.StatusEntry, error) {
	principal, err := requireApprover(ctx)
	if err != nil {
		return nil, err
	}

	var appended *ledger.StatusEntry
	if err := w.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		emp, current, err := w.load(txCtx, principal, in.EmployeeID)
		if err != nil {
			return err
		}

		result, err := w.docs.Evaluate(txCtx, emp.ID, emp.ContractID)
		if err != nil {
			return err
		}

		target := ledger.IntegrationApproved
		if !result.IsReady {
			target = ledger.IntegrationApprovedWithPendingDocs
		}
		if current.IntegrationStatus == target {
			return &TransitionError{
				EmployeeID: emp.ID,
				Actual:     current.IntegrationStatus,
				Pending:    result.Pending,
				Rejected:   result.Rejected,
				Err:        ErrAlreadyApproved,
			}
		}

		next := current.Carry()
		next.IntegrationStatus = target
		next.Kind = ledger.KindInitialApproval

		saved, err := w.statuses.AppendStatus(txCtx, next)
		if err != nil {
			return err
		}
		appended = saved
		return nil
	}); err != nil {
		return nil, err
	}

	w.observe(appended)
	return appended, nil
}

// PromoteIfReady は APPROVED_WITH_PENDING_DOCS の社員の書類が揃った場合に APPROVED へ昇格させます。
// 昇格しなかった場合は nil を返します。
func (w *Workflow) PromoteIfReady(ctx context.Context, employeeID string) (*ledger.StatusEntry, error) {
	var promoted *ledger.StatusEntry
	if err := w.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		saved, err := w.promoteIfReady(txCtx, employeeID)
		if err != nil {
			return err
		}
		promoted = saved
		return nil
	}); err != nil {
		return nil, err
	}

	if promoted != nil {
		w.observe(promoted)
	}
	return promoted, nil
}

// UploadAttachment は書類を提出し、書類が揃えば自動昇格させます。
func (w *Workflow) UploadAttachment(ctx context.Context, in compliance.UploadInput) (*AttachmentResult, error) {
	principal, err := requireEditor(ctx)
	if err != nil {
		return nil, err
	}

	return w.withAttachment(ctx, func(txCtx context.Context) (*compliance.Attachment, error) {
		if _, err := w.employee(txCtx, principal, in.EmployeeID); err != nil {
			return nil, err
		}
		return w.docs.UploadAttachment(txCtx, in)
	})
}

// ReviewAttachment は書類を審査し、書類が揃えば自動昇格させます。
func (w *Workflow) ReviewAttachment(ctx context.Context, in compliance.ReviewInput) (*AttachmentResult, error) {
	if _, err := requireApprover(ctx); err != nil {
		return nil, err
	}

	return w.withAttachment(ctx, func(txCtx context.Context) (*compliance.Attachment, error) {
		return w.docs.ReviewAttachment(txCtx, in)
	})
}

// JustifyAttachment は書類に正当な理由を登録し、書類が揃えば自動昇格させます。
func (w *Workflow) JustifyAttachment(ctx context.Context, in compliance.JustifyInput) (*AttachmentResult, error) {
	principal, err := requireEditor(ctx)
	if err != nil {
		return nil, err
	}

	return w.withAttachment(ctx, func(txCtx context.Context) (*compliance.Attachment, error) {
		attachment, err := w.docs.GetAttachment(txCtx, in.AttachmentID)
		if err != nil {
			return nil, err
		}
		if _, err := w.employee(txCtx, principal, attachment.EmployeeID); err != nil {
			return nil, err
		}
		return w.docs.JustifyAttachment(txCtx, in)
	})
}

func (w *Workflow) withAttachment(ctx context.Context, fn func(context.Context) (*compliance.Attachment, error)) (*AttachmentResult, error) {
	var result AttachmentResult
	if err := w.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		attachment, err := fn(txCtx)
		if err != nil {
			return err
		}
		result.Attachment = attachment

		promoted, err := w.promoteIfReady(txCtx, attachment.EmployeeID)
		if err != nil {
			return err
		}
		result.Promotion = promoted
		return nil
	}); err != nil {
		return nil, err
	}

	if result.Promotion != nil {
		w.observe(result.Promotion)
	}
	return &result, nil
}

func (w *Workflow) promoteIfReady(ctx context.Context, employeeID string) (*ledger.StatusEntry, error) {
	current, err := w.statuses.CurrentStatus(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if current.IntegrationStatus != ledger.IntegrationApprovedWithPendingDocs {
		return nil, nil
	}

	emp, err := w.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: employeeID})
	if err != nil {
		return nil, err
	}
	result, err := w.docs.Evaluate(ctx, emp.ID, emp.ContractID)
	if err != nil {
		return nil, err
	}
	if !result.IsReady {
		return nil, nil
	}

	next := current.Carry()
	next.IntegrationStatus = ledger.IntegrationApproved
	next.Kind = ledger.KindAutomaticFullApproval
	return w.statuses.AppendStatus(ctx, next)
}

func (w *Workflow) load(ctx context.Context, principal identity.Principal, employeeID string) (*employee.Employee, *ledger.StatusEntry, error) {
	emp, err := w.employee(ctx, principal, employeeID)
	if err != nil {
		return nil, nil, err
	}
	current, err := w.statuses.CurrentStatus(ctx, emp.ID)
	if err != nil {
		return nil, nil, err
	}
	return emp, current, nil
}

func (w *Workflow) employee(ctx context.Context, principal identity.Principal, employeeID string) (*employee.Employee, error) {
	emp, err := w.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: employeeID})
	if err != nil {
		return nil, err
	}
	if principal.IsExternal() && emp.CompanyID != principal.CompanyID {
		return nil, ErrForeignEmployee
	}
	return emp, nil
}

func (w *Workflow) observe(entries ...*ledger.StatusEntry) {
	for _, e := range entries {
		if e != nil {
			w.observer.ObserveTransition(e.Kind, e.IntegrationStatus)
		}
	}
}

func requireEditor(ctx context.Context) (identity.Principal, error) {
	principal, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return identity.Principal{}, ErrUnauthenticated
	}
	if !principal.CanEditEmployees() {
		return identity.Principal{}, ErrCannotEditEmployees
	}
	return principal, nil
}

func requireApprover(ctx context.Context) (identity.Principal, error) {
	principal, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return identity.Principal{}, ErrUnauthenticated
	}
	if !principal.IsIntegrationApprover() {
		return identity.Principal{}, ErrNotApprover
	}
	return principal, nil
}

func validateDays(values ...*int) error {
	for _, v := range values {
		if v != nil && *v <= 0 {
			return ErrInvalidValidityDays
		}
	}
	return nil
}

func firstPositive(override, stored *int, fallback int) int {
	if override != nil && *override > 0 {
		return *override
	}
	if stored != nil && *stored > 0 {
		return *stored
	}
	return fallback
}

func mergeAssignment(base, override ledger.Assignment) ledger.Assignment {
	pick := func(b, o ledger.Ref) ledger.Ref {
		if o.IsZero() {
			return b
		}
		return o
	}
	return ledger.Assignment{
		Role:            pick(base.Role, override.Role),
		Position:        pick(base.Position, override.Position),
		Sector:          pick(base.Sector, override.Sector),
		IntegrationUnit: pick(base.IntegrationUnit, override.IntegrationUnit),
		ActivityUnit:    pick(base.ActivityUnit, override.ActivityUnit),
	}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
