package compliance

import "context"

// RequiredDocumentRepository は必須書類定義の永続化を行います。
type RequiredDocumentRepository interface {
	// ListApplicable は共通定義と contractID 固有の定義を、共通定義を先にして ID 順で返します。
	ListApplicable(ctx context.Context, contractID string) ([]*RequiredDocument, error)
	// List は contractID が nil なら共通定義のみ、指定時はその契約固有の定義のみを返します。
	List(ctx context.Context, contractID *string) ([]*RequiredDocument, error)
	Create(ctx context.Context, doc *RequiredDocument) (*RequiredDocument, error)
	Delete(ctx context.Context, id string) error
}

// AttachmentRepository は提出書類の永続化を行います。
type AttachmentRepository interface {
	FindByID(ctx context.Context, id string) (*Attachment, error)
	// FindByEmployeeAndType は該当がない場合 ErrAttachmentNotFound を返します。
	FindByEmployeeAndType(ctx context.Context, employeeID, documentType string) (*Attachment, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*Attachment, error)
	Create(ctx context.Context, attachment *Attachment) (*Attachment, error)
	// Update は既存行を上書きします。
	Update(ctx context.Context, attachment *Attachment) (*Attachment, error)
	CountByStatus(ctx context.Context, status AttachmentStatus) (int, error)
}

// ApprovalRecordRepository は監査記録の追記と参照を行います。
type ApprovalRecordRepository interface {
	Append(ctx context.Context, record *ApprovalRecord) error
	// ListByAttachment は新しい順に返します。
	ListByAttachment(ctx context.Context, attachmentID string) ([]*ApprovalRecord, error)
}
