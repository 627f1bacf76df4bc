package ledger

import "time"

// IntegrationStatus はインテグレーション(オンボーディング)の状態を表します。
type IntegrationStatus string

const (
	IntegrationPending                 IntegrationStatus = "PENDING"
	IntegrationScheduled               IntegrationStatus = "SCHEDULED"
	IntegrationRealized                IntegrationStatus = "REALIZED"
	IntegrationApproved                IntegrationStatus = "APPROVED"
	IntegrationApprovedWithPendingDocs IntegrationStatus = "APPROVED_WITH_PENDING_DOCS"
	IntegrationMissed                  IntegrationStatus = "MISSED"
	IntegrationExpired                 IntegrationStatus = "EXPIRED"
)

// ContractualStatus は社員の契約上の状態を表します。
type ContractualStatus string

const (
	ContractualActive   ContractualStatus = "ACTIVE"
	ContractualInactive ContractualStatus = "INACTIVE"
)

// Kind はエントリを追加した契機を表します。
type Kind string

const (
	KindCreation                       Kind = "creation"
	KindScheduling                     Kind = "scheduling"
	KindAttendanceConfirmed            Kind = "attendance-confirmed"
	KindInitialApproval                Kind = "initial-approval"
	KindAutomaticContractExpiration    Kind = "automatic-contract-expiration"
	KindAutomaticIntegrationExpiration Kind = "automatic-integration-expiration"
	KindAutomaticAbsence               Kind = "automatic-absence"
	KindAutomaticFullApproval          Kind = "automatic-full-approval"
	// KindReassignment は社員名や所属契約の変更を後続のエントリへ反映します。
	KindReassignment Kind = "reassignment"
)

// Ref はカタログ項目への参照です。名称は書き込み時点の値を複製して保持します。
type Ref struct {
	ID   string
	Name string
}

// IsZero は参照が未設定かどうかを返します。
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Assignment は社員の配属情報(職務・役職・部署・ユニット)です。
type Assignment struct {
	Role            Ref
	Position        Ref
	Sector          Ref
	IntegrationUnit Ref
	ActivityUnit    Ref
}

// StatusEntry は社員ステータスのある時点のスナップショットです。一度保存されたエントリは変更されません。
type StatusEntry struct {
	ID                int64
	PreviousID        int64
	EmployeeID        string
	EmployeeName      string
	ContractualStatus ContractualStatus
	IntegrationStatus IntegrationStatus
	Assignment        Assignment
	CompanyID         string
	CompanyName       string
	ContractID        string
	ContractName      string

	IntegrationDate         *time.Time
	ExamDate                *time.Time
	ExamValidityDays        *int
	IntegrationValidityDays *int
	ExamExpiryDate          *time.Time
	IntegrationExpiryDate   *time.Time
	SchedulingJustification string

	Kind       Kind
	RecordedAt time.Time
}

// Carry は e を置き換える未保存のエントリを生成します。
// 非正規化属性とスケジュール情報はすべて複製され、PreviousID には e.ID が設定されます。
func (e *StatusEntry) Carry() *StatusEntry {
	next := *e
	next.ID = 0
	next.PreviousID = e.ID
	next.Kind = ""
	next.RecordedAt = time.Time{}
	next.IntegrationDate = cloneTime(e.IntegrationDate)
	next.ExamDate = cloneTime(e.ExamDate)
	next.ExamExpiryDate = cloneTime(e.ExamExpiryDate)
	next.IntegrationExpiryDate = cloneTime(e.IntegrationExpiryDate)
	next.ExamValidityDays = cloneInt(e.ExamValidityDays)
	next.IntegrationValidityDays = cloneInt(e.IntegrationValidityDays)
	return &next
}

// Clone は e のディープコピーを返します。
func (e *StatusEntry) Clone() *StatusEntry {
	if e == nil {
		return nil
	}
	c := e.Carry()
	c.ID = e.ID
	c.PreviousID = e.PreviousID
	c.Kind = e.Kind
	c.RecordedAt = e.RecordedAt
	return c
}

// ExpiredAt は now 時点でインテグレーションまたは健康診断(ASO)の有効期限が切れているかを返します。
func (e *StatusEntry) ExpiredAt(now time.Time) bool {
	if e.IntegrationExpiryDate != nil && e.IntegrationExpiryDate.Before(now) {
		return true
	}
	if e.ExamExpiryDate != nil && e.ExamExpiryDate.Before(now) {
		return true
	}
	return false
}

// IsValidIntegrationStatus は status が既知の値かどうかを返します。
func IsValidIntegrationStatus(status IntegrationStatus) bool {
	switch status {
	case IntegrationPending, IntegrationScheduled, IntegrationRealized, IntegrationApproved,
		IntegrationApprovedWithPendingDocs, IntegrationMissed, IntegrationExpired:
		return true
	default:
		return false
	}
}

// IsValidContractualStatus は status が既知の値かどうかを返します。
func IsValidContractualStatus(status ContractualStatus) bool {
	switch status {
	case ContractualActive, ContractualInactive:
		return true
	default:
		return false
	}
}

// IsValidKind は kind が既知の値かどうかを返します。
func IsValidKind(kind Kind) bool {
	switch kind {
	case KindCreation, KindScheduling, KindAttendanceConfirmed, KindInitialApproval,
		KindAutomaticContractExpiration, KindAutomaticIntegrationExpiration,
		KindAutomaticAbsence, KindAutomaticFullApproval, KindReassignment:
		return true
	default:
		return false
	}
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
