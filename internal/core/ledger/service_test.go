package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/failure"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeLedgerRepo struct {
	sequence int64
	entries  []*StatusEntry
}

func (r *fakeLedgerRepo) latestID(employeeID string) int64 {
	var latest int64
	for _, e := range r.entries {
		if e.EmployeeID == employeeID && e.ID > latest {
			latest = e.ID
		}
	}
	return latest
}

func (r *fakeLedgerRepo) Append(_ context.Context, entry *StatusEntry) (*StatusEntry, error) {
	if r.latestID(entry.EmployeeID) != entry.PreviousID {
		return nil, ErrConcurrentModification
	}
	r.sequence++
	saved := entry.Clone()
	saved.ID = r.sequence
	r.entries = append(r.entries, saved)
	return saved.Clone(), nil
}

func (r *fakeLedgerRepo) Latest(_ context.Context, employeeID string) (*StatusEntry, error) {
	var latest *StatusEntry
	for _, e := range r.entries {
		if e.EmployeeID == employeeID && (latest == nil || e.ID > latest.ID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNoEntries
	}
	return latest.Clone(), nil
}

func (r *fakeLedgerRepo) History(_ context.Context, filter HistoryFilter) ([]*StatusEntry, string, error) {
	var out []*StatusEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.BeforeID > 0 && e.ID >= filter.BeforeID {
			continue
		}
		out = append(out, e.Clone())
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		page := out[:filter.Limit]
		return page, FormatPageToken(page[len(page)-1].ID), nil
	}
	return out, "", nil
}

func (r *fakeLedgerRepo) ListCurrent(ctx context.Context, filter CurrentFilter) ([]*StatusEntry, error) {
	seen := map[string]bool{}
	var out []*StatusEntry
	for _, e := range r.entries {
		if seen[e.EmployeeID] {
			continue
		}
		seen[e.EmployeeID] = true
		latest, _ := r.Latest(ctx, e.EmployeeID)
		if filter.Matches(latest) {
			out = append(out, latest)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) ListEntries(_ context.Context, filter EntryFilter) ([]*StatusEntry, error) {
	var out []*StatusEntry
	for _, e := range r.entries {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func newEntry(employeeID string, previousID int64, status IntegrationStatus, kind Kind) *StatusEntry {
	return &StatusEntry{
		EmployeeID:        employeeID,
		EmployeeName:      "Employee " + employeeID,
		PreviousID:        previousID,
		ContractualStatus: ContractualActive,
		IntegrationStatus: status,
		Kind:              kind,
	}
}

func TestService_AppendStatus_AssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(&fakeLedgerRepo{}, &stubClock{now: now}, nil)

	first, err := svc.AppendStatus(context.Background(), newEntry("emp-1", 0, IntegrationPending, KindCreation))
	if err != nil {
		t.Fatalf("AppendStatus returned error: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected id 1, got %d", first.ID)
	}
	if !first.RecordedAt.Equal(now) {
		t.Fatalf("expected recorded at to use clock, got %v", first.RecordedAt)
	}

	next := first.Carry()
	next.IntegrationStatus = IntegrationScheduled
	next.Kind = KindScheduling
	second, err := svc.AppendStatus(context.Background(), next)
	if err != nil {
		t.Fatalf("AppendStatus returned error: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected monotonic ids, got %d after %d", second.ID, first.ID)
	}
	if second.PreviousID != first.ID {
		t.Fatalf("expected previous id %d, got %d", first.ID, second.PreviousID)
	}
}

func TestService_AppendStatus_StaleRead(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeLedgerRepo{}, nil, nil)
	ctx := context.Background()

	created, err := svc.AppendStatus(ctx, newEntry("emp-1", 0, IntegrationPending, KindCreation))
	if err != nil {
		t.Fatalf("AppendStatus returned error: %v", err)
	}

	a := created.Carry()
	a.IntegrationStatus = IntegrationScheduled
	a.Kind = KindScheduling
	if _, err := svc.AppendStatus(ctx, a); err != nil {
		t.Fatalf("first writer failed: %v", err)
	}

	b := created.Carry()
	b.IntegrationStatus = IntegrationExpired
	b.Kind = KindAutomaticIntegrationExpiration
	_, err = svc.AppendStatus(ctx, b)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if failure.KindOf(err) != failure.KindStateConflict {
		t.Fatalf("expected state conflict kind, got %s", failure.KindOf(err))
	}
}

func TestService_AppendStatus_Validation(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeLedgerRepo{}, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		entry *StatusEntry
		want  error
	}{
		{name: "missing employee", entry: newEntry(" ", 0, IntegrationPending, KindCreation), want: ErrInvalidEmployeeID},
		{name: "unknown status", entry: newEntry("emp-1", 0, IntegrationStatus("VENCIDO"), KindCreation), want: ErrInvalidStatus},
		{name: "unknown kind", entry: newEntry("emp-1", 0, IntegrationPending, Kind("status")), want: ErrInvalidKind},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := svc.AppendStatus(ctx, tc.entry); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestService_CurrentStatus_IsMaxIDPerEmployee(t *testing.T) {
	t.Parallel()

	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	rnd := rand.New(rand.NewSource(7))
	employees := []string{"emp-1", "emp-2", "emp-3"}
	statuses := []IntegrationStatus{IntegrationPending, IntegrationScheduled, IntegrationRealized, IntegrationApproved}
	latest := map[string]int64{}

	for i := 0; i < 60; i++ {
		emp := employees[rnd.Intn(len(employees))]
		kind := KindScheduling
		if latest[emp] == 0 {
			kind = KindCreation
		}
		saved, err := svc.AppendStatus(ctx, newEntry(emp, latest[emp], statuses[rnd.Intn(len(statuses))], kind))
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		latest[emp] = saved.ID
	}

	for _, emp := range employees {
		var maxID int64
		for _, e := range repo.entries {
			if e.EmployeeID == emp && e.ID > maxID {
				maxID = e.ID
			}
		}
		current, err := svc.CurrentStatus(ctx, emp)
		if err != nil {
			t.Fatalf("CurrentStatus(%s) returned error: %v", emp, err)
		}
		if current.ID != maxID {
			t.Fatalf("CurrentStatus(%s) = %d, want max id %d", emp, current.ID, maxID)
		}
	}
}

func TestService_CurrentStatus_NoEntries(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeLedgerRepo{}, nil, nil)

	_, err := svc.CurrentStatus(context.Background(), "emp-404")
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
	if failure.KindOf(err) != failure.KindNotFound {
		t.Fatalf("expected not found kind, got %s", failure.KindOf(err))
	}
}

func TestService_History_MostRecentFirstAndRestartable(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeLedgerRepo{}, nil, nil)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		kind := KindScheduling
		if i == 0 {
			kind = KindCreation
		}
		saved, err := svc.AppendStatus(ctx, newEntry("emp-1", prev, IntegrationScheduled, kind))
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		prev = saved.ID
		if _, err := svc.AppendStatus(ctx, newEntry(fmt.Sprintf("other-%d", i), 0, IntegrationPending, KindCreation)); err != nil {
			t.Fatalf("append other failed: %v", err)
		}
	}

	all, err := svc.History(ctx, HistoryInput{EmployeeID: "emp-1"})
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(all.Entries) != 5 || all.NextPageToken != "" {
		t.Fatalf("expected 5 entries without token, got %d token=%q", len(all.Entries), all.NextPageToken)
	}
	for i := 1; i < len(all.Entries); i++ {
		if all.Entries[i-1].ID <= all.Entries[i].ID {
			t.Fatalf("expected descending ids, got %d then %d", all.Entries[i-1].ID, all.Entries[i].ID)
		}
	}

	var paged []*StatusEntry
	token := ""
	for {
		page, err := svc.History(ctx, HistoryInput{EmployeeID: "emp-1", PageSize: 2, PageToken: token})
		if err != nil {
			t.Fatalf("History page returned error: %v", err)
		}
		paged = append(paged, page.Entries...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	if len(paged) != len(all.Entries) {
		t.Fatalf("expected paging to return %d entries, got %d", len(all.Entries), len(paged))
	}
	for i := range paged {
		if paged[i].ID != all.Entries[i].ID {
			t.Fatalf("page order mismatch at %d: %d vs %d", i, paged[i].ID, all.Entries[i].ID)
		}
	}
}

func TestService_History_InvalidPageToken(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeLedgerRepo{}, nil, nil)

	_, err := svc.History(context.Background(), HistoryInput{EmployeeID: "emp-1", PageToken: "abc"})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestStatusEntry_CarryCopiesDenormalizedFields(t *testing.T) {
	t.Parallel()

	integration := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	days := 30
	src := &StatusEntry{
		ID:                42,
		EmployeeID:        "emp-1",
		EmployeeName:      "Maria",
		ContractualStatus: ContractualActive,
		IntegrationStatus: IntegrationRealized,
		Assignment: Assignment{
			Role:     Ref{ID: "r1", Name: "Welder"},
			Sector:   Ref{ID: "s1", Name: "Maintenance"},
			Position: Ref{ID: "p1", Name: "Senior"},
		},
		CompanyName:      "ACME",
		ContractName:     "C1",
		IntegrationDate:  &integration,
		ExamValidityDays: &days,
		Kind:             KindAttendanceConfirmed,
		RecordedAt:       integration,
	}

	next := src.Carry()
	if next.ID != 0 || next.Kind != "" || !next.RecordedAt.IsZero() {
		t.Fatalf("expected identity fields reset, got %+v", next)
	}
	if next.PreviousID != 42 {
		t.Fatalf("expected previous id 42, got %d", next.PreviousID)
	}
	if next.Assignment != src.Assignment || next.CompanyName != "ACME" || next.ContractName != "C1" {
		t.Fatalf("expected denormalized fields to be copied, got %+v", next)
	}

	*next.IntegrationDate = next.IntegrationDate.AddDate(0, 0, 1)
	*next.ExamValidityDays = 99
	if !src.IntegrationDate.Equal(integration) || *src.ExamValidityDays != 30 {
		t.Fatal("expected Carry to deep copy pointer fields")
	}
}

func TestStatusEntry_ExpiredAt(t *testing.T) {
	t.Parallel()

	exam := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	entry := &StatusEntry{ExamExpiryDate: &exam}

	if entry.ExpiredAt(exam) {
		t.Fatal("expiry date itself must not count as expired")
	}
	if !entry.ExpiredAt(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected entry to be expired the day after")
	}
	if (&StatusEntry{}).ExpiredAt(exam) {
		t.Fatal("entry without expiry dates never expires")
	}
}
