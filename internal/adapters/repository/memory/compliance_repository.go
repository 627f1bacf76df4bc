package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
)

// RequiredDocumentRepository は compliance.RequiredDocumentRepository のメモリ実装です。
type RequiredDocumentRepository struct {
	store *Store
}

var _ compliance.RequiredDocumentRepository = (*RequiredDocumentRepository)(nil)

func (r *RequiredDocumentRepository) ListApplicable(_ context.Context, contractID string) ([]*compliance.RequiredDocument, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var global, scoped []*compliance.RequiredDocument
	for _, d := range r.store.st.required {
		switch {
		case d.ContractID == nil:
			global = append(global, cloneRequired(d))
		case contractID != "" && *d.ContractID == contractID:
			scoped = append(scoped, cloneRequired(d))
		}
	}
	return append(global, scoped...), nil
}

func (r *RequiredDocumentRepository) List(_ context.Context, contractID *string) ([]*compliance.RequiredDocument, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*compliance.RequiredDocument, 0)
	for _, d := range r.store.st.required {
		if sameScope(d.ContractID, contractID) {
			out = append(out, cloneRequired(d))
		}
	}
	return out, nil
}

func (r *RequiredDocumentRepository) Create(_ context.Context, doc *compliance.RequiredDocument) (*compliance.RequiredDocument, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, d := range r.store.st.required {
		if d.Name == doc.Name && sameScope(d.ContractID, doc.ContractID) {
			return nil, compliance.ErrRequiredDocumentExists
		}
	}
	saved := cloneRequired(doc)
	saved.ID = uuid.NewString()
	r.store.st.required = append(r.store.st.required, saved)
	return cloneRequired(saved), nil
}

func (r *RequiredDocumentRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i, d := range r.store.st.required {
		if d.ID == id {
			r.store.st.required = append(r.store.st.required[:i], r.store.st.required[i+1:]...)
			return nil
		}
	}
	return compliance.ErrRequiredDocumentNotFound
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// AttachmentRepository は compliance.AttachmentRepository のメモリ実装です。
type AttachmentRepository struct {
	store *Store
}

var _ compliance.AttachmentRepository = (*AttachmentRepository)(nil)

func (r *AttachmentRepository) FindByID(_ context.Context, id string) (*compliance.Attachment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.st.attachments[id]
	if !ok {
		return nil, compliance.ErrAttachmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *AttachmentRepository) FindByEmployeeAndType(_ context.Context, employeeID, documentType string) (*compliance.Attachment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, a := range r.store.st.attachments {
		if a.EmployeeID == employeeID && a.DocumentType == documentType {
			out := *a
			return &out, nil
		}
	}
	return nil, compliance.ErrAttachmentNotFound
}

func (r *AttachmentRepository) ListByEmployee(_ context.Context, employeeID string) ([]*compliance.Attachment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*compliance.Attachment, 0)
	for _, id := range r.store.st.attachmentOrder {
		if a := r.store.st.attachments[id]; a.EmployeeID == employeeID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *AttachmentRepository) Create(_ context.Context, a *compliance.Attachment) (*compliance.Attachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	if _, ok := st.employees[a.EmployeeID]; !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	for _, existing := range st.attachments {
		if existing.EmployeeID == a.EmployeeID && existing.DocumentType == a.DocumentType {
			return nil, compliance.ErrAttachmentExists
		}
	}

	saved := *a
	saved.ID = uuid.NewString()
	st.attachments[saved.ID] = &saved
	st.attachmentOrder = append(st.attachmentOrder, saved.ID)
	out := saved
	return &out, nil
}

func (r *AttachmentRepository) Update(_ context.Context, a *compliance.Attachment) (*compliance.Attachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.st.attachments[a.ID]; !ok {
		return nil, compliance.ErrAttachmentNotFound
	}
	saved := *a
	r.store.st.attachments[a.ID] = &saved
	out := saved
	return &out, nil
}

func (r *AttachmentRepository) CountByStatus(_ context.Context, status compliance.AttachmentStatus) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := 0
	for _, a := range r.store.st.attachments {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

// ApprovalRecordRepository は compliance.ApprovalRecordRepository のメモリ実装です。
type ApprovalRecordRepository struct {
	store *Store
}

var _ compliance.ApprovalRecordRepository = (*ApprovalRecordRepository)(nil)

func (r *ApprovalRecordRepository) Append(_ context.Context, record *compliance.ApprovalRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.st.attachments[record.AttachmentID]; !ok {
		return compliance.ErrAttachmentNotFound
	}
	clone := *record
	r.store.st.records = append(r.store.st.records, &clone)
	return nil
}

func (r *ApprovalRecordRepository) ListByAttachment(_ context.Context, attachmentID string) ([]*compliance.ApprovalRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*compliance.ApprovalRecord, 0)
	for _, rec := range r.store.st.records {
		if rec.AttachmentID == attachmentID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID.Compare(out[j].ID) > 0
	})
	return out, nil
}
