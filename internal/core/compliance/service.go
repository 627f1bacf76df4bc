package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/ids"
)

const (
	observationInitialUpload = "initial upload"
	observationResent        = "re-sent"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

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

// Service は必須書類と提出書類に関するユースケースをまとめます。
type Service struct {
	required    RequiredDocumentRepository
	attachments AttachmentRepository
	records     ApprovalRecordRepository
	clock       Clock
	tx          TransactionManager
}

// NewService は Service を生成します。
func NewService(required RequiredDocumentRepository, attachments AttachmentRepository, records ApprovalRecordRepository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{required: required, attachments: attachments, records: records, clock: clock, tx: tx}
}

// UploadInput は書類提出時の入力です。Link は外部ストレージが返した参照で、任意です。
type UploadInput struct {
	EmployeeID   string
	DocumentType string
	Filename     string
	Content      []byte
	Link         string
	Observation  string
}

// ReviewInput は書類審査時の入力です。
type ReviewInput struct {
	AttachmentID string
	Status       AttachmentStatus
	Observation  string
}

// JustifyInput は未提出書類に正当な理由を登録する際の入力です。
type JustifyInput struct {
	AttachmentID string
	Observation  string
}

// CreateRequiredDocumentInput は必須書類定義の作成入力です。
type CreateRequiredDocumentInput struct {
	Name       string
	ContractID *string
}

// Evaluate は社員の必須書類の充足状況を毎回計算して返します。
func (s *Service) Evaluate(ctx context.Context, employeeID, contractID string) (Result, error) {
	empID := strings.TrimSpace(employeeID)
	if empID == "" {
		return Result{}, ErrInvalidEmployeeID
	}

	var result Result
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		required, err := s.required.ListApplicable(txCtx, strings.TrimSpace(contractID))
		if err != nil {
			return fmt.Errorf("list required documents: %w", err)
		}
		attachments, err := s.attachments.ListByEmployee(txCtx, empID)
		if err != nil {
			return fmt.Errorf("list attachments: %w", err)
		}
		result = Evaluate(required, attachments)
		return nil
	}); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ListRequiredDocuments は必須書類定義を返します。contractID が nil の場合は共通定義です。
func (s *Service) ListRequiredDocuments(ctx context.Context, contractID *string) ([]*RequiredDocument, error) {
	var docs []*RequiredDocument
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.required.List(txCtx, normalizeContractID(contractID))
		if err != nil {
			return err
		}
		docs = found
		return nil
	}); err != nil {
		return nil, err
	}
	return docs, nil
}

// CreateRequiredDocument は必須書類定義を追加します。
func (s *Service) CreateRequiredDocument(ctx context.Context, in CreateRequiredDocumentInput) (*RequiredDocument, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidDocumentType
	}

	var created *RequiredDocument
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		doc, err := s.required.Create(txCtx, &RequiredDocument{Name: name, ContractID: normalizeContractID(in.ContractID)})
		if err != nil {
			return err
		}
		created = doc
		return nil
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteRequiredDocument は必須書類定義を削除します。
func (s *Service) DeleteRequiredDocument(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ErrRequiredDocumentNotFound
	}
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.required.Delete(txCtx, trimmed)
	})
}

// UploadAttachment は書類を登録します。同じ種別の書類が既にあれば上書きし CORRECTED にします。
// 監査記録は呼び出し元のトランザクション内で追記されます。
func (s *Service) UploadAttachment(ctx context.Context, in UploadInput) (*Attachment, error) {
	empID := strings.TrimSpace(in.EmployeeID)
	if empID == "" {
		return nil, ErrInvalidEmployeeID
	}
	docType := strings.TrimSpace(in.DocumentType)
	if docType == "" {
		return nil, ErrInvalidDocumentType
	}
	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return nil, ErrInvalidFilename
	}

	sum := sha256.Sum256(in.Content)
	now := s.clock.Now()

	var saved *Attachment
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.attachments.FindByEmployeeAndType(txCtx, empID, docType)
		if err != nil && !errors.Is(err, ErrAttachmentNotFound) {
			return err
		}

		observation := strings.TrimSpace(in.Observation)
		if existing == nil {
			if observation == "" {
				observation = observationInitialUpload
			}
			saved, err = s.attachments.Create(txCtx, &Attachment{
				EmployeeID:   empID,
				DocumentType: docType,
				Filename:     filename,
				Status:       AttachmentAwaiting,
				Observation:  observation,
				Hash:         hex.EncodeToString(sum[:]),
				Link:         strings.TrimSpace(in.Link),
				Size:         int64(len(in.Content)),
				UploadedAt:   now,
			})
		} else {
			if observation == "" {
				observation = observationResent
			}
			updated := *existing
			updated.Filename = filename
			updated.Status = AttachmentCorrected
			updated.Observation = observation
			updated.Hash = hex.EncodeToString(sum[:])
			updated.Link = strings.TrimSpace(in.Link)
			updated.Size = int64(len(in.Content))
			updated.UploadedAt = now
			saved, err = s.attachments.Update(txCtx, &updated)
		}
		if err != nil {
			return err
		}
		return s.appendRecord(txCtx, saved, now)
	}); err != nil {
		return nil, err
	}
	return saved, nil
}

// ReviewAttachment は書類の審査結果を反映します。差し戻しには理由が必須です。
// 権限の確認は呼び出し元で行います。
func (s *Service) ReviewAttachment(ctx context.Context, in ReviewInput) (*Attachment, error) {
	if !IsValidAttachmentStatus(in.Status) {
		return nil, fmt.Errorf("status %q: %w", in.Status, ErrInvalidStatus)
	}
	observation := strings.TrimSpace(in.Observation)
	if in.Status == AttachmentRejected && observation == "" {
		return nil, ErrObservationRequired
	}
	return s.changeStatus(ctx, in.AttachmentID, in.Status, observation)
}

// JustifyAttachment は書類を正当な理由付きの PENDING にします。
func (s *Service) JustifyAttachment(ctx context.Context, in JustifyInput) (*Attachment, error) {
	observation := strings.TrimSpace(in.Observation)
	if observation == "" {
		return nil, ErrObservationRequired
	}
	return s.changeStatus(ctx, in.AttachmentID, AttachmentPending, observation)
}

func (s *Service) changeStatus(ctx context.Context, attachmentID string, status AttachmentStatus, observation string) (*Attachment, error) {
	id := strings.TrimSpace(attachmentID)
	if id == "" {
		return nil, ErrInvalidAttachmentID
	}
	now := s.clock.Now()

	var saved *Attachment
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.attachments.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		updated := *existing
		updated.Status = status
		updated.Observation = observation
		saved, err = s.attachments.Update(txCtx, &updated)
		if err != nil {
			return err
		}
		return s.appendRecord(txCtx, saved, now)
	}); err != nil {
		return nil, err
	}
	return saved, nil
}

// ListAttachments は社員の提出書類を返します。
func (s *Service) ListAttachments(ctx context.Context, employeeID string) ([]*Attachment, error) {
	empID := strings.TrimSpace(employeeID)
	if empID == "" {
		return nil, ErrInvalidEmployeeID
	}
	var out []*Attachment
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.attachments.ListByEmployee(txCtx, empID)
		if err != nil {
			return err
		}
		out = found
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAttachment は提出書類を取得します。
func (s *Service) GetAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	id := strings.TrimSpace(attachmentID)
	if id == "" {
		return nil, ErrInvalidAttachmentID
	}
	var out *Attachment
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.attachments.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		out = found
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// ListApprovalRecords は提出書類の監査記録を新しい順に返します。
func (s *Service) ListApprovalRecords(ctx context.Context, attachmentID string) ([]*ApprovalRecord, error) {
	id := strings.TrimSpace(attachmentID)
	if id == "" {
		return nil, ErrInvalidAttachmentID
	}
	var out []*ApprovalRecord
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.records.ListByAttachment(txCtx, id)
		if err != nil {
			return err
		}
		out = found
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// CountAwaitingReview は審査待ちの提出書類数を返します。
func (s *Service) CountAwaitingReview(ctx context.Context) (int, error) {
	var count int
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		n, err := s.attachments.CountByStatus(txCtx, AttachmentAwaiting)
		if err != nil {
			return err
		}
		count = n
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) appendRecord(ctx context.Context, attachment *Attachment, at time.Time) error {
	record := &ApprovalRecord{
		ID:           ids.NewAt(at),
		AttachmentID: attachment.ID,
		Observation:  attachment.Observation,
		Status:       attachment.Status,
		RecordedAt:   at,
	}
	if principal, ok := identity.PrincipalFromContext(ctx); ok {
		record.ProfileID = principal.ProfileID
		record.ProfileName = principal.ActorName()
	}
	if err := s.records.Append(ctx, record); err != nil {
		return fmt.Errorf("append approval record: %w", err)
	}
	return nil
}

func normalizeContractID(contractID *string) *string {
	if contractID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*contractID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
