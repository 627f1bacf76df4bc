package sweep_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/adapters/repository/memory"
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"github.com/ogurasousui/onboarding-compliance/internal/core/integration"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/ogurasousui/onboarding-compliance/internal/core/sweep"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type recordingRuns struct {
	results []string
}

func (r *recordingRuns) ObserveSweep(result string, _ time.Duration) {
	r.results = append(r.results, result)
}

type env struct {
	store     *memory.Store
	clock     *stubClock
	ledger    *ledger.Service
	contracts *contract.Service
	employees *employee.Service
	workflow  *integration.Workflow
	sweeper   *sweep.Sweeper
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()

	store := memory.NewStore()
	clock := &stubClock{now: now}
	ledgerSvc := ledger.NewService(store.Ledger(), clock, store)
	contractSvc := contract.NewService(store.Contracts(), clock, store)
	employeeSvc := employee.NewService(store.Employees(), contractSvc, ledgerSvc, clock, store)
	docs := compliance.NewService(store.RequiredDocuments(), store.Attachments(), store.ApprovalRecords(), clock, store)

	return &env{
		store:     store,
		clock:     clock,
		ledger:    ledgerSvc,
		contracts: contractSvc,
		employees: employeeSvc,
		workflow:  integration.NewWorkflow(ledgerSvc, employeeSvc, docs, integration.DefaultPolicy(), store),
		sweeper:   sweep.NewSweeper(ledgerSvc, contractSvc, employeeSvc, 5, clock, store),
	}
}

func (e *env) contract(t *testing.T, name string, endsAt time.Time) *contract.Contract {
	t.Helper()
	c, err := e.contracts.CreateContract(context.Background(), contract.CreateContractInput{
		Name:      name,
		CompanyID: "co-1",
		StartsAt:  endsAt.AddDate(-1, 0, 0),
		EndsAt:    endsAt,
	})
	if err != nil {
		t.Fatalf("CreateContract returned error: %v", err)
	}
	return c
}

func (e *env) hire(t *testing.T, contractID, document string) *employee.Employee {
	t.Helper()
	emp, err := e.employees.CreateEmployee(context.Background(), employee.CreateEmployeeInput{
		Name: "Worker " + document, Document: document, CompanyID: "co-1", ContractID: contractID,
	})
	if err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}
	return emp
}

func (e *env) current(t *testing.T, employeeID string) *ledger.StatusEntry {
	t.Helper()
	entry, err := e.ledger.CurrentStatus(context.Background(), employeeID)
	if err != nil {
		t.Fatalf("CurrentStatus returned error: %v", err)
	}
	return entry
}

func (e *env) historyLen(t *testing.T, employeeID string) int {
	t.Helper()
	h, err := e.ledger.History(context.Background(), ledger.HistoryInput{EmployeeID: employeeID})
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	return len(h.Entries)
}

func approverCtx() context.Context {
	return identity.ContextWithPrincipal(context.Background(), identity.NewPrincipal("u-1", identity.TypeInternalUser, identity.PermAdmin))
}

func TestSweeper_ContractExpiry(t *testing.T) {
	t.Parallel()

	e := newEnv(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	c1 := e.contract(t, "C1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	active1 := e.hire(t, c1.ID, "100")
	active2 := e.hire(t, c1.ID, "200")
	inactive := e.hire(t, c1.ID, "300")

	prior := e.current(t, inactive.ID).Carry()
	prior.ContractualStatus = ledger.ContractualInactive
	prior.Kind = ledger.KindAutomaticContractExpiration
	if _, err := e.ledger.AppendStatus(context.Background(), prior); err != nil {
		t.Fatalf("AppendStatus returned error: %v", err)
	}

	e.clock.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	report, err := e.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.ContractsExpired != 1 || report.EmployeesDeactivated != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	found, err := e.contracts.GetContract(context.Background(), c1.ID)
	if err != nil || found.Status != contract.StatusExpired {
		t.Fatalf("expected contract EXPIRED, got %+v (%v)", found, err)
	}
	for _, emp := range []*employee.Employee{active1, active2} {
		entry := e.current(t, emp.ID)
		if entry.ContractualStatus != ledger.ContractualInactive || entry.Kind != ledger.KindAutomaticContractExpiration {
			t.Fatalf("unexpected entry for %s: %+v", emp.ID, entry)
		}
		if entry.IntegrationStatus != ledger.IntegrationPending || entry.EmployeeName != emp.Name {
			t.Fatalf("expected fields to be carried for %s: %+v", emp.ID, entry)
		}
	}
	if n := e.historyLen(t, inactive.ID); n != 2 {
		t.Fatalf("expected already inactive employee to be untouched, got %d entries", n)
	}

	again, err := e.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if again != (sweep.Report{}) {
		t.Fatalf("expected idempotent second run, got %+v", again)
	}
}

func TestSweeper_ExamExpiry(t *testing.T) {
	t.Parallel()

	e := newEnv(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	c := e.contract(t, "C2", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	emp := e.hire(t, c.ID, "100")

	exam := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	days := 30
	if _, err := e.workflow.Schedule(approverCtx(), integration.ScheduleInput{
		EmployeeIDs:      []string{emp.ID},
		Date:             time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		ExamDate:         &exam,
		ExamValidityDays: &days,
	}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	realized, err := e.workflow.ConfirmAttendance(approverCtx(), integration.ConfirmInput{EmployeeID: emp.ID})
	if err != nil {
		t.Fatalf("ConfirmAttendance returned error: %v", err)
	}
	if !realized.ExamExpiryDate.Equal(time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected exam expiry %s", realized.ExamExpiryDate)
	}

	e.clock.now = time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	if report, err := e.sweeper.Run(context.Background()); err != nil || report.IntegrationsExpired != 0 {
		t.Fatalf("expected nothing to expire on the expiry date, got %+v (%v)", report, err)
	}

	e.clock.now = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	report, err := e.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.IntegrationsExpired != 1 {
		t.Fatalf("expected one expiry, got %+v", report)
	}
	entry := e.current(t, emp.ID)
	if entry.IntegrationStatus != ledger.IntegrationExpired || entry.Kind != ledger.KindAutomaticIntegrationExpiration {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ExamExpiryDate == nil || !entry.ExamExpiryDate.Equal(*realized.ExamExpiryDate) {
		t.Fatalf("expected expiry dates to be carried, got %+v", entry.ExamExpiryDate)
	}

	before := e.historyLen(t, emp.ID)
	if _, err := e.sweeper.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if after := e.historyLen(t, emp.ID); after != before {
		t.Fatalf("expected no additional entries, got %d -> %d", before, after)
	}
}

func TestSweeper_MissedAppointment(t *testing.T) {
	t.Parallel()

	e := newEnv(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	c := e.contract(t, "C3", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	emp := e.hire(t, c.ID, "100")

	if _, err := e.workflow.Schedule(approverCtx(), integration.ScheduleInput{
		EmployeeIDs: []string{emp.ID},
		Date:        time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	e.clock.now = time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)
	if report, err := e.sweeper.Run(context.Background()); err != nil || report.Absences != 0 {
		t.Fatalf("expected no absence within grace period, got %+v (%v)", report, err)
	}

	e.clock.now = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	report, err := e.sweeper.Run(context.Background())
	if err != nil || report.Absences != 1 {
		t.Fatalf("expected one absence, got %+v (%v)", report, err)
	}
	if entry := e.current(t, emp.ID); entry.IntegrationStatus != ledger.IntegrationMissed || entry.Kind != ledger.KindAutomaticAbsence {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

type failingLedger struct {
	listErr   error
	appendErr error
	current   []*ledger.StatusEntry
}

func (f *failingLedger) ListCurrent(context.Context, ledger.CurrentFilter) ([]*ledger.StatusEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.current, nil
}

func (f *failingLedger) AppendStatus(_ context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	return entry, nil
}

type noContracts struct{}

func (noContracts) ListExpirable(context.Context, time.Time) ([]*contract.Contract, error) {
	return nil, nil
}

func (noContracts) MarkExpired(context.Context, string) (*contract.StatusChange, error) {
	return nil, errors.New("unexpected call")
}

type noEmployees struct{}

func (noEmployees) ListByContract(context.Context, string) ([]*employee.Employee, error) {
	return nil, nil
}

func TestSweeper_RunSafely_SwallowsErrors(t *testing.T) {
	t.Parallel()

	runs := &recordingRuns{}
	s := sweep.NewSweeper(&failingLedger{listErr: errors.New("db down")}, noContracts{}, noEmployees{}, 5, nil, nil).
		WithObservers(nil, runs)

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected Run to return the error")
	}
	if report := s.RunSafely(context.Background()); report != (sweep.Report{}) {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if len(runs.results) != 1 || runs.results[0] != sweep.ResultError {
		t.Fatalf("unexpected run results: %v", runs.results)
	}
}

func TestSweeper_SkipsConcurrentlyModifiedEmployees(t *testing.T) {
	t.Parallel()

	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &failingLedger{
		appendErr: ledger.ErrConcurrentModification,
		current: []*ledger.StatusEntry{{
			ID: 7, EmployeeID: "emp-1",
			ContractualStatus:     ledger.ContractualActive,
			IntegrationStatus:     ledger.IntegrationApproved,
			IntegrationExpiryDate: &past,
		}},
	}
	clock := &stubClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := sweep.NewSweeper(fake, noContracts{}, noEmployees{}, 5, clock, nil)

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.IntegrationsExpired != 0 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

// racingLedger は最初の契約期限切れ追記の直前に、別の操作による追記を割り込ませます。
type racingLedger struct {
	*ledger.Service
	date  time.Time
	raced bool
}

func (r *racingLedger) AppendStatus(ctx context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error) {
	if !r.raced && entry.Kind == ledger.KindAutomaticContractExpiration {
		r.raced = true
		current, err := r.Service.CurrentStatus(ctx, entry.EmployeeID)
		if err != nil {
			return nil, err
		}
		scheduled := current.Carry()
		scheduled.IntegrationStatus = ledger.IntegrationScheduled
		scheduled.IntegrationDate = &r.date
		scheduled.Kind = ledger.KindScheduling
		if _, err := r.Service.AppendStatus(ctx, scheduled); err != nil {
			return nil, err
		}
	}
	return r.Service.AppendStatus(ctx, entry)
}

func TestSweeper_ContractExpiryRetriedAfterConcurrentAppend(t *testing.T) {
	t.Parallel()

	e := newEnv(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	c1 := e.contract(t, "C1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	emp := e.hire(t, c1.ID, "100")

	e.clock.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	racing := &racingLedger{Service: e.ledger, date: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)}
	s := sweep.NewSweeper(racing, e.contracts, e.employees, 5, e.clock, e.store)

	first, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if first.ContractsExpired != 0 || first.EmployeesDeactivated != 0 || first.Skipped != 1 {
		t.Fatalf("unexpected first report: %+v", first)
	}
	if found, _ := e.contracts.GetContract(context.Background(), c1.ID); found.Status != contract.StatusActive {
		t.Fatalf("expected contract to stay ACTIVE while an employee is pending, got %s", found.Status)
	}

	second, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if second.ContractsExpired != 1 || second.EmployeesDeactivated != 1 || second.Skipped != 0 {
		t.Fatalf("unexpected second report: %+v", second)
	}

	found, err := e.contracts.GetContract(context.Background(), c1.ID)
	if err != nil || found.Status != contract.StatusExpired {
		t.Fatalf("expected contract EXPIRED, got %+v (%v)", found, err)
	}
	entry := e.current(t, emp.ID)
	if entry.ContractualStatus != ledger.ContractualInactive || entry.IntegrationStatus != ledger.IntegrationScheduled {
		t.Fatalf("unexpected current entry: %+v", entry)
	}
	if third, err := s.Run(context.Background()); err != nil || third != (sweep.Report{}) {
		t.Fatalf("expected idempotent third run, got %+v (%v)", third, err)
	}
}

func TestTrigger_RateLimited(t *testing.T) {
	t.Parallel()

	runs := &recordingRuns{}
	s := sweep.NewSweeper(&failingLedger{}, noContracts{}, noEmployees{}, 5, nil, nil).WithObservers(nil, runs)

	limited := sweep.NewTrigger(s, time.Hour)
	if _, ran := limited.Fire(context.Background()); !ran {
		t.Fatal("expected first trigger to run")
	}
	if _, ran := limited.Fire(context.Background()); ran {
		t.Fatal("expected second trigger to be throttled")
	}

	always := sweep.NewTrigger(s, 0)
	for i := 0; i < 3; i++ {
		if _, ran := always.Fire(context.Background()); !ran {
			t.Fatalf("expected unthrottled trigger to run on call %d", i)
		}
	}
	if len(runs.results) != 4 {
		t.Fatalf("expected 4 sweep runs, got %d", len(runs.results))
	}

	var nilTrigger *sweep.Trigger
	if _, ran := nilTrigger.Fire(context.Background()); ran {
		t.Fatal("expected nil trigger to be a no-op")
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	t.Parallel()

	runs := &recordingRuns{}
	s := sweep.NewSweeper(&failingLedger{}, noContracts{}, noEmployees{}, 5, nil, nil).WithObservers(nil, runs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sweep.NewScheduler(s, time.Hour).Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	if len(runs.results) != 1 {
		t.Fatalf("expected the initial run only, got %d", len(runs.results))
	}
}

type lockingTx struct {
	acquired bool
	keys     []string
}

func (l *lockingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (l *lockingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (l *lockingTx) TryXactLock(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.acquired, nil
}

func TestSweeper_BusyWhenLockHeldElsewhere(t *testing.T) {
	t.Parallel()

	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &failingLedger{
		current: []*ledger.StatusEntry{{
			ID: 7, EmployeeID: "emp-1",
			ContractualStatus:     ledger.ContractualActive,
			IntegrationStatus:     ledger.IntegrationApproved,
			IntegrationExpiryDate: &past,
		}},
	}
	tx := &lockingTx{}
	clock := &stubClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := sweep.NewSweeper(fake, noContracts{}, noEmployees{}, 5, clock, tx)

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !report.Busy || report.Total() != 0 {
		t.Fatalf("expected a busy no-op report, got %+v", report)
	}
	if len(tx.keys) != 1 {
		t.Fatalf("expected one lock attempt, got %d", len(tx.keys))
	}

	tx.acquired = true
	report, err = s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Busy || report.IntegrationsExpired != 1 {
		t.Fatalf("expected the expiry to apply once the lock is held, got %+v", report)
	}
}
