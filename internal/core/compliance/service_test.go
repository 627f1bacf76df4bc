package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeRequiredRepo struct {
	docs []*RequiredDocument
	seq  int
}

func (r *fakeRequiredRepo) ListApplicable(_ context.Context, contractID string) ([]*RequiredDocument, error) {
	var global, scoped []*RequiredDocument
	for _, d := range r.docs {
		switch {
		case d.ContractID == nil:
			global = append(global, d)
		case *d.ContractID == contractID:
			scoped = append(scoped, d)
		}
	}
	return append(global, scoped...), nil
}

func (r *fakeRequiredRepo) List(_ context.Context, contractID *string) ([]*RequiredDocument, error) {
	var out []*RequiredDocument
	for _, d := range r.docs {
		if (contractID == nil && d.ContractID == nil) || (contractID != nil && d.ContractID != nil && *d.ContractID == *contractID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRequiredRepo) Create(_ context.Context, doc *RequiredDocument) (*RequiredDocument, error) {
	r.seq++
	clone := *doc
	clone.ID = fmt.Sprintf("req-%d", r.seq)
	r.docs = append(r.docs, &clone)
	return &clone, nil
}

func (r *fakeRequiredRepo) Delete(_ context.Context, id string) error {
	for i, d := range r.docs {
		if d.ID == id {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return nil
		}
	}
	return ErrRequiredDocumentNotFound
}

type fakeAttachmentRepo struct {
	items map[string]*Attachment
	seq   int
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{items: make(map[string]*Attachment)}
}

func (r *fakeAttachmentRepo) FindByID(_ context.Context, id string) (*Attachment, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, ErrAttachmentNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *fakeAttachmentRepo) FindByEmployeeAndType(_ context.Context, employeeID, documentType string) (*Attachment, error) {
	for _, a := range r.items {
		if a.EmployeeID == employeeID && a.DocumentType == documentType {
			clone := *a
			return &clone, nil
		}
	}
	return nil, ErrAttachmentNotFound
}

func (r *fakeAttachmentRepo) ListByEmployee(_ context.Context, employeeID string) ([]*Attachment, error) {
	var out []*Attachment
	for _, a := range r.items {
		if a.EmployeeID == employeeID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) Create(_ context.Context, a *Attachment) (*Attachment, error) {
	r.seq++
	clone := *a
	clone.ID = fmt.Sprintf("att-%d", r.seq)
	r.items[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeAttachmentRepo) Update(_ context.Context, a *Attachment) (*Attachment, error) {
	if _, ok := r.items[a.ID]; !ok {
		return nil, ErrAttachmentNotFound
	}
	clone := *a
	r.items[a.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeAttachmentRepo) CountByStatus(_ context.Context, status AttachmentStatus) (int, error) {
	n := 0
	for _, a := range r.items {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

type fakeRecordRepo struct {
	records []*ApprovalRecord
	err     error
}

func (r *fakeRecordRepo) Append(_ context.Context, rec *ApprovalRecord) error {
	if r.err != nil {
		return r.err
	}
	clone := *rec
	r.records = append(r.records, &clone)
	return nil
}

func (r *fakeRecordRepo) ListByAttachment(_ context.Context, attachmentID string) ([]*ApprovalRecord, error) {
	var out []*ApprovalRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].AttachmentID == attachmentID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

type fixture struct {
	svc         *Service
	required    *fakeRequiredRepo
	attachments *fakeAttachmentRepo
	records     *fakeRecordRepo
}

func newFixture() fixture {
	required := &fakeRequiredRepo{}
	attachments := newFakeAttachmentRepo()
	records := &fakeRecordRepo{}
	clock := &stubClock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	return fixture{
		svc:         NewService(required, attachments, records, clock, nil),
		required:    required,
		attachments: attachments,
		records:     records,
	}
}

func TestService_UploadAttachment_NewThenResent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.UploadAttachment(ctx, UploadInput{EmployeeID: "emp-1", DocumentType: "RG", Filename: "rg.pdf", Content: []byte("v1")})
	if err != nil {
		t.Fatalf("UploadAttachment returned error: %v", err)
	}
	want := sha256.Sum256([]byte("v1"))
	if first.Status != AttachmentAwaiting || first.Hash != hex.EncodeToString(want[:]) || first.Size != 2 {
		t.Fatalf("unexpected attachment: %+v", first)
	}

	second, err := f.svc.UploadAttachment(ctx, UploadInput{EmployeeID: "emp-1", DocumentType: "RG", Filename: "rg-v2.pdf", Content: []byte("version two")})
	if err != nil {
		t.Fatalf("UploadAttachment returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected overwrite in place, got new id %s", second.ID)
	}
	if second.Status != AttachmentCorrected || second.Observation != observationResent || second.Filename != "rg-v2.pdf" {
		t.Fatalf("unexpected re-sent attachment: %+v", second)
	}
	if len(f.attachments.items) != 1 {
		t.Fatalf("expected a single attachment row, got %d", len(f.attachments.items))
	}

	records, err := f.svc.ListApprovalRecords(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListApprovalRecords returned error: %v", err)
	}
	if len(records) != 2 || records[0].Status != AttachmentCorrected || records[1].Status != AttachmentAwaiting {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[1].Observation != observationInitialUpload {
		t.Fatalf("unexpected first observation %q", records[1].Observation)
	}
}

func TestService_ReviewAttachment_RecordsActor(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	uploaded, err := f.svc.UploadAttachment(ctx, UploadInput{EmployeeID: "emp-1", DocumentType: "CPF", Filename: "cpf.pdf"})
	if err != nil {
		t.Fatalf("UploadAttachment returned error: %v", err)
	}

	reviewer := identity.NewPrincipal("u-1", identity.TypeInternalUser, identity.PermAdmin)
	reviewer.ProfileID = "p-1"
	reviewer.ProfileName = "Safety"
	reviewCtx := identity.ContextWithPrincipal(ctx, reviewer)

	reviewed, err := f.svc.ReviewAttachment(reviewCtx, ReviewInput{AttachmentID: uploaded.ID, Status: AttachmentRejected, Observation: "illegible"})
	if err != nil {
		t.Fatalf("ReviewAttachment returned error: %v", err)
	}
	if reviewed.Status != AttachmentRejected || reviewed.Observation != "illegible" {
		t.Fatalf("unexpected reviewed attachment: %+v", reviewed)
	}

	last := f.records.records[len(f.records.records)-1]
	if last.ProfileID != "p-1" || last.ProfileName != "Safety" || last.Status != AttachmentRejected {
		t.Fatalf("unexpected record: %+v", last)
	}
}

func TestService_ReviewAttachment_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.ReviewAttachment(ctx, ReviewInput{AttachmentID: "att-1", Status: "LOST"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.ReviewAttachment(ctx, ReviewInput{AttachmentID: "missing", Status: AttachmentApproved}); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
	if _, err := f.svc.ReviewAttachment(ctx, ReviewInput{AttachmentID: "att-1", Status: AttachmentRejected}); !errors.Is(err, ErrObservationRequired) {
		t.Fatalf("expected ErrObservationRequired for rejection, got %v", err)
	}
	if _, err := f.svc.JustifyAttachment(ctx, JustifyInput{AttachmentID: "att-1", Observation: "  "}); !errors.Is(err, ErrObservationRequired) {
		t.Fatalf("expected ErrObservationRequired, got %v", err)
	}
}

func TestService_UploadAttachment_RecordFailurePropagates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.records.err = errors.New("insert failed")

	_, err := f.svc.UploadAttachment(context.Background(), UploadInput{EmployeeID: "emp-1", DocumentType: "RG", Filename: "rg.pdf"})
	if err == nil || !errors.Is(err, f.records.err) {
		t.Fatalf("expected record error, got %v", err)
	}
}

func TestService_Evaluate_UsesContractScope(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	for _, in := range []CreateRequiredDocumentInput{
		{Name: "RG"},
		{Name: "CPF"},
		{Name: "ASO", ContractID: strPtr("contract-1")},
		{Name: "NR35", ContractID: strPtr("contract-2")},
	} {
		if _, err := f.svc.CreateRequiredDocument(ctx, in); err != nil {
			t.Fatalf("CreateRequiredDocument returned error: %v", err)
		}
	}

	uploaded, err := f.svc.UploadAttachment(ctx, UploadInput{EmployeeID: "emp-1", DocumentType: "RG", Filename: "rg.pdf"})
	if err != nil {
		t.Fatalf("UploadAttachment returned error: %v", err)
	}
	if _, err := f.svc.ReviewAttachment(ctx, ReviewInput{AttachmentID: uploaded.ID, Status: AttachmentApproved}); err != nil {
		t.Fatalf("ReviewAttachment returned error: %v", err)
	}
	if _, err := f.svc.UploadAttachment(ctx, UploadInput{EmployeeID: "emp-1", DocumentType: "CPF", Filename: "cpf.pdf"}); err != nil {
		t.Fatalf("UploadAttachment returned error: %v", err)
	}

	result, err := f.svc.Evaluate(ctx, "emp-1", "contract-1")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.IsReady || len(result.Pending) != 2 || result.Pending[0] != "CPF" || result.Pending[1] != "ASO" {
		t.Fatalf("unexpected result: %+v", result)
	}

	awaiting, err := f.svc.CountAwaitingReview(ctx)
	if err != nil {
		t.Fatalf("CountAwaitingReview returned error: %v", err)
	}
	if awaiting != 1 {
		t.Fatalf("expected 1 awaiting attachment, got %d", awaiting)
	}
}

func TestService_CreateRequiredDocument_BlankContractIsGlobal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	doc, err := f.svc.CreateRequiredDocument(context.Background(), CreateRequiredDocumentInput{Name: " RG ", ContractID: strPtr(" ")})
	if err != nil {
		t.Fatalf("CreateRequiredDocument returned error: %v", err)
	}
	if !doc.IsGlobal() || doc.Name != "RG" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	if _, err := f.svc.CreateRequiredDocument(context.Background(), CreateRequiredDocumentInput{Name: ""}); !errors.Is(err, ErrInvalidDocumentType) {
		t.Fatalf("expected ErrInvalidDocumentType, got %v", err)
	}
}
