package compliance

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// AttachmentStatus は提出書類の審査状態を表します。
type AttachmentStatus string

const (
	AttachmentAwaiting  AttachmentStatus = "AWAITING"
	AttachmentApproved  AttachmentStatus = "APPROVED"
	AttachmentRejected  AttachmentStatus = "REJECTED"
	AttachmentCorrected AttachmentStatus = "CORRECTED"
	// AttachmentPending は正当な理由の登録により保留扱いになった状態です。
	AttachmentPending AttachmentStatus = "PENDING"
)

// RequiredDocument は必須書類の定義です。ContractID が nil の場合は全契約共通です。
type RequiredDocument struct {
	ID         string
	Name       string
	ContractID *string
}

// IsGlobal は全契約共通の定義かどうかを返します。
func (d *RequiredDocument) IsGlobal() bool {
	return d.ContractID == nil
}

// Attachment は社員と書類種別の組ごとに一件だけ存在する提出書類です。
// 再提出時は同じ行を上書きします。
type Attachment struct {
	ID           string
	EmployeeID   string
	DocumentType string
	Filename     string
	Status       AttachmentStatus
	Observation  string
	Hash         string
	Link         string
	Size         int64
	UploadedAt   time.Time
}

// ApprovalRecord は提出書類の状態変更の監査記録です。追記のみ行います。
type ApprovalRecord struct {
	ID           ulid.ULID
	AttachmentID string
	ProfileID    string
	ProfileName  string
	Observation  string
	Status       AttachmentStatus
	RecordedAt   time.Time
}

// Result は必須書類の充足判定結果です。
type Result struct {
	IsReady        bool
	Pending        []string
	Rejected       []string
	TotalRequired  int
	TotalSubmitted int
}

// IsValidAttachmentStatus は status が既知の値かどうかを返します。
func IsValidAttachmentStatus(status AttachmentStatus) bool {
	switch status {
	case AttachmentAwaiting, AttachmentApproved, AttachmentRejected, AttachmentCorrected, AttachmentPending:
		return true
	default:
		return false
	}
}
