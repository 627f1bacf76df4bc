package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/ids"
)

func seedEmployee(t *testing.T, store *Store) *employee.Employee {
	t.Helper()
	emp, err := store.Employees().Create(context.Background(), &employee.Employee{Name: "A", Document: "1", CompanyID: "co-1", ContractID: "c-1"})
	if err != nil {
		t.Fatalf("Create employee returned error: %v", err)
	}
	return emp
}

func newEntry(employeeID string, previousID int64, status ledger.IntegrationStatus) *ledger.StatusEntry {
	return &ledger.StatusEntry{
		EmployeeID:        employeeID,
		PreviousID:        previousID,
		ContractualStatus: ledger.ContractualActive,
		IntegrationStatus: status,
		Kind:              ledger.KindCreation,
	}
}

func TestLedgerRepository_AppendCompareAndSwap(t *testing.T) {
	t.Parallel()

	repo := NewStore().Ledger()
	ctx := context.Background()

	first, err := repo.Append(ctx, newEntry("emp-1", 0, ledger.IntegrationPending))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if _, err := repo.Append(ctx, newEntry("emp-1", 0, ledger.IntegrationScheduled)); !errors.Is(err, ledger.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	second, err := repo.Append(ctx, newEntry("emp-1", first.ID, ledger.IntegrationScheduled))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected monotonic ids, got %d after %d", second.ID, first.ID)
	}

	latest, err := repo.Latest(ctx, "emp-1")
	if err != nil || latest.ID != second.ID {
		t.Fatalf("expected latest %d, got %+v (%v)", second.ID, latest, err)
	}
}

func TestLedgerRepository_HistoryPaging(t *testing.T) {
	t.Parallel()

	repo := NewStore().Ledger()
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		saved, err := repo.Append(ctx, newEntry("emp-1", prev, ledger.IntegrationPending))
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		prev = saved.ID
	}
	if _, err := repo.Append(ctx, newEntry("emp-2", 0, ledger.IntegrationPending)); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	page, next, err := repo.History(ctx, ledger.HistoryFilter{EmployeeID: "emp-1", Limit: 2})
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(page) != 2 || page[0].ID != 5 || page[1].ID != 4 || next != "4" {
		t.Fatalf("unexpected first page: %d entries next=%q", len(page), next)
	}

	rest, next, err := repo.History(ctx, ledger.HistoryFilter{EmployeeID: "emp-1", BeforeID: 4})
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(rest) != 3 || rest[0].ID != 3 || next != "" {
		t.Fatalf("unexpected rest: %d entries next=%q", len(rest), next)
	}

	current, err := repo.ListCurrent(ctx, ledger.CurrentFilter{})
	if err != nil {
		t.Fatalf("ListCurrent returned error: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("expected one current entry per employee, got %d", len(current))
	}
}

func TestStore_WithinReadWrite_RollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := store.Ledger().Append(txCtx, newEntry("emp-1", 0, ledger.IntegrationPending)); err != nil {
			return err
		}
		return store.WithinReadWrite(txCtx, func(context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.Ledger().Latest(ctx, "emp-1"); !errors.Is(err, ledger.ErrNoEntries) {
		t.Fatalf("expected rolled back ledger, got %v", err)
	}
}

func TestEmployeeRepository_DeleteCascades(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	emp := seedEmployee(t, store)

	if _, err := store.Ledger().Append(ctx, newEntry(emp.ID, 0, ledger.IntegrationPending)); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	att, err := store.Attachments().Create(ctx, &compliance.Attachment{EmployeeID: emp.ID, DocumentType: "RG", Status: compliance.AttachmentAwaiting})
	if err != nil {
		t.Fatalf("Create attachment returned error: %v", err)
	}
	if err := store.ApprovalRecords().Append(ctx, &compliance.ApprovalRecord{ID: ids.New(), AttachmentID: att.ID, Status: compliance.AttachmentAwaiting}); err != nil {
		t.Fatalf("Append record returned error: %v", err)
	}

	if err := store.Employees().Delete(ctx, emp.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := store.Ledger().Latest(ctx, emp.ID); !errors.Is(err, ledger.ErrNoEntries) {
		t.Fatalf("expected ledger entries to be deleted, got %v", err)
	}
	if _, err := store.Attachments().FindByID(ctx, att.ID); !errors.Is(err, compliance.ErrAttachmentNotFound) {
		t.Fatalf("expected attachment to be deleted, got %v", err)
	}
	records, err := store.ApprovalRecords().ListByAttachment(ctx, att.ID)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected records to be deleted, got %d (%v)", len(records), err)
	}
}

func TestAttachmentRepository_UniquePerDocumentType(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	emp := seedEmployee(t, store)

	if _, err := store.Attachments().Create(ctx, &compliance.Attachment{EmployeeID: "ghost", DocumentType: "RG"}); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
	if _, err := store.Attachments().Create(ctx, &compliance.Attachment{EmployeeID: emp.ID, DocumentType: "RG"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := store.Attachments().Create(ctx, &compliance.Attachment{EmployeeID: emp.ID, DocumentType: "RG"}); !errors.Is(err, compliance.ErrAttachmentExists) {
		t.Fatalf("expected ErrAttachmentExists, got %v", err)
	}
}

func TestContractRepository_StatusFromHistory(t *testing.T) {
	t.Parallel()

	repo := NewStore().Contracts()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, &contract.Contract{Name: "C1", CompanyID: "co-1", EndsAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	expirable, err := repo.ListExpirable(ctx, now)
	if err != nil || len(expirable) != 1 {
		t.Fatalf("expected 1 expirable contract, got %d (%v)", len(expirable), err)
	}

	if _, err := repo.AppendStatus(ctx, &contract.StatusChange{ContractID: created.ID, Status: contract.StatusExpired, Kind: contract.ChangeAutomaticExpiration, RecordedAt: now}); err != nil {
		t.Fatalf("AppendStatus returned error: %v", err)
	}

	found, err := repo.FindByID(ctx, created.ID)
	if err != nil || found.Status != contract.StatusExpired {
		t.Fatalf("expected EXPIRED, got %+v (%v)", found, err)
	}
	expirable, err = repo.ListExpirable(ctx, now)
	if err != nil || len(expirable) != 0 {
		t.Fatalf("expected no expirable contracts, got %d (%v)", len(expirable), err)
	}
}
