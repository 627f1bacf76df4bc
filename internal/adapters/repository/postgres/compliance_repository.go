package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	pgdb "github.com/ogurasousui/onboarding-compliance/internal/platform/db/postgres"
)

const attachmentColumns = `id, employee_id, document_type, filename, status, observation, hash, link, size, uploaded_at`

// RequiredDocumentRepository は必須書類定義の PostgreSQL 実装です。
type RequiredDocumentRepository struct {
	pool pgdb.Queryer
}

var _ compliance.RequiredDocumentRepository = (*RequiredDocumentRepository)(nil)

// NewRequiredDocumentRepository は RequiredDocumentRepository を生成します。
func NewRequiredDocumentRepository(pool pgdb.Queryer) *RequiredDocumentRepository {
	return &RequiredDocumentRepository{pool: pool}
}

// ListApplicable は共通定義と契約固有の定義を、共通定義を先にして返します。
func (r *RequiredDocumentRepository) ListApplicable(ctx context.Context, contractID string) ([]*compliance.RequiredDocument, error) {
	var p placeholders
	if contractID == "" {
		p.where("contract_id IS NULL")
	} else {
		p.where("(contract_id IS NULL OR contract_id = " + p.next(contractID) + ")")
	}
	return r.query(ctx, `
        SELECT id, name, contract_id
          FROM required_documents`+p.clause("WHERE")+`
         ORDER BY contract_id IS NOT NULL, name, id
    `, p.args...)
}

// List は contractID の範囲に属する定義のみを返します。nil は共通定義です。
func (r *RequiredDocumentRepository) List(ctx context.Context, contractID *string) ([]*compliance.RequiredDocument, error) {
	var p placeholders
	if contractID == nil {
		p.where("contract_id IS NULL")
	} else {
		p.where("contract_id = " + p.next(*contractID))
	}
	return r.query(ctx, `
        SELECT id, name, contract_id
          FROM required_documents`+p.clause("WHERE")+`
         ORDER BY name, id
    `, p.args...)
}

// Create は必須書類定義を保存します。
func (r *RequiredDocumentRepository) Create(ctx context.Context, doc *compliance.RequiredDocument) (*compliance.RequiredDocument, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO required_documents (name, contract_id)
        VALUES ($1, $2)
        RETURNING id, name, contract_id
    `, doc.Name, nullableString(doc.ContractID))

	created, err := scanRequiredDocument(row)
	if err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrRequiredDocumentNotFound)
	}
	return created, nil
}

// Delete は必須書類定義を削除します。
func (r *RequiredDocumentRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM required_documents WHERE id = $1`, id)
	if err != nil {
		return translateCompliancePgError(err, compliance.ErrRequiredDocumentNotFound)
	}
	if tag.RowsAffected() == 0 {
		return compliance.ErrRequiredDocumentNotFound
	}
	return nil
}

func (r *RequiredDocumentRepository) query(ctx context.Context, query string, args ...any) ([]*compliance.RequiredDocument, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrRequiredDocumentNotFound)
	}
	defer rows.Close()

	docs := make([]*compliance.RequiredDocument, 0)
	for rows.Next() {
		d, err := scanRequiredDocument(rows)
		if err != nil {
			return nil, translateCompliancePgError(err, compliance.ErrRequiredDocumentNotFound)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrRequiredDocumentNotFound)
	}
	return docs, nil
}

// AttachmentRepository は提出書類の PostgreSQL 実装です。
type AttachmentRepository struct {
	pool pgdb.Queryer
}

var _ compliance.AttachmentRepository = (*AttachmentRepository)(nil)

// NewAttachmentRepository は AttachmentRepository を生成します。
func NewAttachmentRepository(pool pgdb.Queryer) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

// FindByID は ID で提出書類を取得します。
func (r *AttachmentRepository) FindByID(ctx context.Context, id string) (*compliance.Attachment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+attachmentColumns+`
          FROM attachments
         WHERE id = $1
    `, id)
	return r.scanOne(row)
}

// FindByEmployeeAndType は社員と書類種別の組で提出書類を取得します。
func (r *AttachmentRepository) FindByEmployeeAndType(ctx context.Context, employeeID, documentType string) (*compliance.Attachment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+attachmentColumns+`
          FROM attachments
         WHERE employee_id = $1 AND document_type = $2
    `, employeeID, documentType)
	return r.scanOne(row)
}

// ListByEmployee は社員の提出書類を提出順に返します。
func (r *AttachmentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*compliance.Attachment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+attachmentColumns+`
          FROM attachments
         WHERE employee_id = $1
         ORDER BY uploaded_at, id
    `, employeeID)
	if err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	defer rows.Close()

	attachments := make([]*compliance.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	return attachments, nil
}

// Create は提出書類を保存します。社員と書類種別の組はテーブルの一意制約で保護されます。
func (r *AttachmentRepository) Create(ctx context.Context, a *compliance.Attachment) (*compliance.Attachment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO attachments (employee_id, document_type, filename, status, observation, hash, link, size, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+attachmentColumns+`
    `, a.EmployeeID, a.DocumentType, a.Filename, string(a.Status), a.Observation, a.Hash, a.Link, a.Size, a.UploadedAt)
	return r.scanOne(row)
}

// Update は既存の提出書類を上書きします。
func (r *AttachmentRepository) Update(ctx context.Context, a *compliance.Attachment) (*compliance.Attachment, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE attachments
           SET filename = $1,
               status = $2,
               observation = $3,
               hash = $4,
               link = $5,
               size = $6,
               uploaded_at = $7
         WHERE id = $8
        RETURNING `+attachmentColumns+`
    `, a.Filename, string(a.Status), a.Observation, a.Hash, a.Link, a.Size, a.UploadedAt, a.ID)
	return r.scanOne(row)
}

// CountByStatus は審査状態ごとの件数を返します。
func (r *AttachmentRepository) CountByStatus(ctx context.Context, status compliance.AttachmentStatus) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var count int64
	if err := exec.QueryRow(ctx, `SELECT count(*) FROM attachments WHERE status = $1`, string(status)).Scan(&count); err != nil {
		return 0, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	return int(count), nil
}

func (r *AttachmentRepository) scanOne(row pgx.Row) (*compliance.Attachment, error) {
	a, err := scanAttachment(row)
	if err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	return a, nil
}

// ApprovalRecordRepository は監査記録の PostgreSQL 実装です。
type ApprovalRecordRepository struct {
	pool pgdb.Queryer
}

var _ compliance.ApprovalRecordRepository = (*ApprovalRecordRepository)(nil)

// NewApprovalRecordRepository は ApprovalRecordRepository を生成します。
func NewApprovalRecordRepository(pool pgdb.Queryer) *ApprovalRecordRepository {
	return &ApprovalRecordRepository{pool: pool}
}

// Append は監査記録を追記します。
func (r *ApprovalRecordRepository) Append(ctx context.Context, record *compliance.ApprovalRecord) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO approval_records (id, attachment_id, profile_id, profile_name, observation, status, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `,
		record.ID.String(),
		record.AttachmentID,
		record.ProfileID,
		record.ProfileName,
		record.Observation,
		string(record.Status),
		record.RecordedAt,
	)
	if err != nil {
		return translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	return nil
}

// ListByAttachment は監査記録を新しい順に返します。ULID の辞書順は生成順と一致します。
func (r *ApprovalRecordRepository) ListByAttachment(ctx context.Context, attachmentID string) ([]*compliance.ApprovalRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, attachment_id, profile_id, profile_name, observation, status, recorded_at
          FROM approval_records
         WHERE attachment_id = $1
         ORDER BY id DESC
    `, attachmentID)
	if err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	defer rows.Close()

	records := make([]*compliance.ApprovalRecord, 0)
	for rows.Next() {
		var (
			rec    compliance.ApprovalRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.AttachmentID, &rec.ProfileID, &rec.ProfileName, &rec.Observation, &status, &rec.RecordedAt); err != nil {
			return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
		}
		rec.Status = compliance.AttachmentStatus(status)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translateCompliancePgError(err, compliance.ErrAttachmentNotFound)
	}
	return records, nil
}

func scanRequiredDocument(row pgx.Row) (*compliance.RequiredDocument, error) {
	var (
		d          compliance.RequiredDocument
		contractID sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &contractID); err != nil {
		return nil, err
	}
	if contractID.Valid {
		id := contractID.String
		d.ContractID = &id
	}
	return &d, nil
}

func scanAttachment(row pgx.Row) (*compliance.Attachment, error) {
	var (
		a      compliance.Attachment
		status string
	)
	if err := row.Scan(&a.ID, &a.EmployeeID, &a.DocumentType, &a.Filename, &status, &a.Observation, &a.Hash, &a.Link, &a.Size, &a.UploadedAt); err != nil {
		return nil, err
	}
	a.Status = compliance.AttachmentStatus(status)
	return &a, nil
}

// translateCompliancePgError は notFound を行が見つからない場合のエラーとして変換します。
func translateCompliancePgError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case invalidTextCode:
		return notFound
	case uniqueViolationCode:
		switch pgErr.ConstraintName {
		case "attachments_employee_document_type_key":
			return compliance.ErrAttachmentExists
		case "required_documents_scope_name_key":
			return compliance.ErrRequiredDocumentExists
		}
	case foreignKeyViolationCode:
		switch pgErr.ConstraintName {
		case "attachments_employee_id_fkey":
			return employee.ErrEmployeeNotFound
		case "approval_records_attachment_id_fkey":
			return compliance.ErrAttachmentNotFound
		}
	case checkViolationCode:
		return compliance.ErrInvalidStatus
	}
	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
