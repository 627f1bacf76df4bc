package compliance

import (
	"math/rand"
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestEvaluate_GlobalAndContractDocuments(t *testing.T) {
	t.Parallel()

	required := []*RequiredDocument{
		{ID: "1", Name: "RG"},
		{ID: "2", Name: "CPF"},
		{ID: "3", Name: "ASO", ContractID: strPtr("contract-1")},
	}
	attachments := []*Attachment{
		{EmployeeID: "emp-1", DocumentType: "RG", Status: AttachmentApproved},
		{EmployeeID: "emp-1", DocumentType: "CPF", Status: AttachmentAwaiting},
	}

	got := Evaluate(required, attachments)

	if got.IsReady {
		t.Fatal("expected not ready")
	}
	if !reflect.DeepEqual(got.Pending, []string{"CPF", "ASO"}) {
		t.Fatalf("unexpected pending: %v", got.Pending)
	}
	if len(got.Rejected) != 0 {
		t.Fatalf("expected no rejected, got %v", got.Rejected)
	}
	if got.TotalRequired != 3 || got.TotalSubmitted != 2 {
		t.Fatalf("unexpected totals: %+v", got)
	}
}

func TestEvaluate_StatusClassification(t *testing.T) {
	t.Parallel()

	required := []*RequiredDocument{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}, {Name: "A", ContractID: strPtr("c")}}
	attachments := []*Attachment{
		{DocumentType: "A", Status: AttachmentCorrected},
		{DocumentType: "B", Status: AttachmentRejected},
		{DocumentType: "C", Status: AttachmentPending},
		{DocumentType: "D", Status: AttachmentApproved},
		{DocumentType: "EXTRA", Status: AttachmentAwaiting},
	}

	got := Evaluate(required, attachments)
	if got.IsReady {
		t.Fatal("expected not ready due to rejected document")
	}
	if len(got.Pending) != 0 {
		t.Fatalf("expected no pending, got %v", got.Pending)
	}
	if !reflect.DeepEqual(got.Rejected, []string{"B"}) {
		t.Fatalf("unexpected rejected: %v", got.Rejected)
	}
	if got.TotalRequired != 4 {
		t.Fatalf("duplicate names must be evaluated once, got total %d", got.TotalRequired)
	}
}

func TestEvaluate_NoRequirementsIsReady(t *testing.T) {
	t.Parallel()

	got := Evaluate(nil, nil)
	if !got.IsReady || got.Pending == nil || got.Rejected == nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestEvaluate_ReadyImpliesEmptyLists(t *testing.T) {
	t.Parallel()

	statuses := []AttachmentStatus{AttachmentAwaiting, AttachmentApproved, AttachmentRejected, AttachmentCorrected, AttachmentPending}
	names := []string{"RG", "CPF", "ASO", "NR10", "NR35"}
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		var required []*RequiredDocument
		for _, n := range names {
			if rnd.Intn(2) == 0 {
				required = append(required, &RequiredDocument{Name: n})
			}
		}
		var attachments []*Attachment
		for _, n := range names {
			if rnd.Intn(3) > 0 {
				attachments = append(attachments, &Attachment{DocumentType: n, Status: statuses[rnd.Intn(len(statuses))]})
			}
		}

		got := Evaluate(required, attachments)
		if got.IsReady != (len(got.Pending) == 0 && len(got.Rejected) == 0) {
			t.Fatalf("iteration %d: inconsistent result %+v", i, got)
		}
		if len(got.Pending)+len(got.Rejected) > got.TotalRequired {
			t.Fatalf("iteration %d: more findings than requirements %+v", i, got)
		}
	}
}
