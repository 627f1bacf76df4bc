package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
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

// StatusLedger は社員ごとの現在状態の参照と追記を提供します。
type StatusLedger interface {
	ListCurrent(ctx context.Context, filter ledger.CurrentFilter) ([]*ledger.StatusEntry, error)
	AppendStatus(ctx context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error)
}

// ContractExpirer は期限切れ契約の抽出と状態追記を提供します。
type ContractExpirer interface {
	ListExpirable(ctx context.Context, now time.Time) ([]*contract.Contract, error)
	MarkExpired(ctx context.Context, contractID string) (*contract.StatusChange, error)
}

// EmployeeLister は契約に所属する社員を返します。
type EmployeeLister interface {
	ListByContract(ctx context.Context, contractID string) ([]*employee.Employee, error)
}

// RunObserver はスイープ実行結果の通知を受け取ります。
type RunObserver interface {
	ObserveSweep(result string, duration time.Duration)
}

type nopRunObserver struct{}

func (nopRunObserver) ObserveSweep(string, time.Duration) {}

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Report は 1 回のスイープで追記した件数です。
type Report struct {
	ContractsExpired     int
	EmployeesDeactivated int
	IntegrationsExpired  int
	Absences             int
	// Skipped は並行する追記と競合したため次回に持ち越した社員数です。
	Skipped int
	// Busy は別のプロセスがスイープ中だったため何もしなかったことを示します。
	Busy bool
}

// Total は追記したステータスエントリの合計です。
func (r Report) Total() int {
	return r.EmployeesDeactivated + r.IntegrationsExpired + r.Absences
}

// ExclusiveLocker は複数プロセス間でスイープを排他するロックを提供します。
// TransactionManager がこれを実装している場合、Run はトランザクション内でロックを取得し、
// 取得できなければ何もせずに終了します。
type ExclusiveLocker interface {
	TryXactLock(ctx context.Context, key string) (bool, error)
}

const sweepLockKey = "onboarding.expiration-sweep"

// Sweeper は期限切れ・欠席を検出して台帳へ追記します。何度実行しても結果は変わりません。
type Sweeper struct {
	statuses  StatusLedger
	contracts ContractExpirer
	employees EmployeeLister
	graceDays int
	clock     Clock
	tx        TransactionManager
	logger    *slog.Logger
	observer  ledger.TransitionObserver
	runs      RunObserver
}

// NewSweeper は Sweeper を生成します。
func NewSweeper(statuses StatusLedger, contracts ContractExpirer, employees EmployeeLister, graceDays int, clock Clock, tx TransactionManager) *Sweeper {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if graceDays < 0 {
		graceDays = 0
	}
	return &Sweeper{
		statuses:  statuses,
		contracts: contracts,
		employees: employees,
		graceDays: graceDays,
		clock:     clock,
		tx:        tx,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:  ledger.NopObserver{},
		runs:      nopRunObserver{},
	}
}

// WithLogger はロガーを設定します。
func (s *Sweeper) WithLogger(logger *slog.Logger) *Sweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithObservers は遷移と実行結果の通知先を設定します。nil は無視されます。
func (s *Sweeper) WithObservers(transitions ledger.TransitionObserver, runs RunObserver) *Sweeper {
	if transitions != nil {
		s.observer = transitions
	}
	if runs != nil {
		s.runs = runs
	}
	return s
}

// Run は 3 つのパスを 1 つの読み書きトランザクションで実行します。
// エラー時はトランザクション全体がロールバックされます。
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	now := s.clock.Now()

	var (
		report   Report
		appended []*ledger.StatusEntry
	)
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		report = Report{}
		appended = appended[:0]

		if locker, ok := s.tx.(ExclusiveLocker); ok {
			acquired, err := locker.TryXactLock(txCtx, sweepLockKey)
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !acquired {
				report.Busy = true
				return nil
			}
		}

		record := func(entry *ledger.StatusEntry) (bool, error) {
			saved, err := s.statuses.AppendStatus(txCtx, entry)
			if errors.Is(err, ledger.ErrConcurrentModification) {
				report.Skipped++
				s.logger.WarnContext(txCtx, "sweep skipped employee after concurrent update",
					slog.String("employee_id", entry.EmployeeID), slog.String("kind", string(entry.Kind)))
				return false, nil
			}
			if err != nil {
				return false, err
			}
			appended = append(appended, saved)
			return true, nil
		}

		if err := s.expireContracts(txCtx, now, &report, record); err != nil {
			return fmt.Errorf("contract expiry: %w", err)
		}
		if err := s.expireIntegrations(txCtx, now, &report, record); err != nil {
			return fmt.Errorf("integration expiry: %w", err)
		}
		if err := s.markAbsences(txCtx, now, &report, record); err != nil {
			return fmt.Errorf("missed appointments: %w", err)
		}
		return nil
	}); err != nil {
		return Report{}, fmt.Errorf("sweep: %w", err)
	}

	for _, e := range appended {
		s.observer.ObserveTransition(e.Kind, e.IntegrationStatus)
	}
	return report, nil
}

// RunSafely は Run を実行し、失敗してもエラーを返しません。読み取り系の処理から呼び出されます。
func (s *Sweeper) RunSafely(ctx context.Context) Report {
	start := time.Now()
	report, err := s.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.runs.ObserveSweep(ResultError, elapsed)
		s.logger.ErrorContext(ctx, "expiration sweep failed", slog.Any("error", err))
		return Report{}
	}

	s.runs.ObserveSweep(ResultOK, elapsed)
	if report.Busy {
		s.logger.DebugContext(ctx, "expiration sweep already running elsewhere")
		return report
	}
	if report.Total() > 0 || report.ContractsExpired > 0 || report.Skipped > 0 {
		s.logger.InfoContext(ctx, "expiration sweep applied",
			slog.Int("contracts_expired", report.ContractsExpired),
			slog.Int("employees_deactivated", report.EmployeesDeactivated),
			slog.Int("integrations_expired", report.IntegrationsExpired),
			slog.Int("absences", report.Absences),
			slog.Int("skipped", report.Skipped),
			slog.Duration("elapsed", elapsed),
		)
	}
	return report
}

type recordFunc func(*ledger.StatusEntry) (bool, error)

// expireContracts は所属社員を先に INACTIVE にし、全員を追記できた契約だけを EXPIRED にします。
// 競合で持ち越した社員がいる契約は ACTIVE のまま残り、次回の実行で再び対象になります。
func (s *Sweeper) expireContracts(ctx context.Context, now time.Time, report *Report, record recordFunc) error {
	contracts, err := s.contracts.ListExpirable(ctx, now)
	if err != nil {
		return err
	}

	for _, c := range contracts {
		deferred, err := s.deactivateEmployees(ctx, c.ID, report, record)
		if err != nil {
			return err
		}
		if deferred > 0 {
			s.logger.WarnContext(ctx, "contract expiry deferred until its employees are deactivated",
				slog.String("contract_id", c.ID), slog.Int("deferred", deferred))
			continue
		}
		if _, err := s.contracts.MarkExpired(ctx, c.ID); err != nil {
			return err
		}
		report.ContractsExpired++
	}
	return nil
}

func (s *Sweeper) deactivateEmployees(ctx context.Context, contractID string, report *Report, record recordFunc) (int, error) {
	employees, err := s.employees.ListByContract(ctx, contractID)
	if err != nil {
		return 0, err
	}
	if len(employees) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}

	active := ledger.ContractualActive
	current, err := s.statuses.ListCurrent(ctx, ledger.CurrentFilter{EmployeeIDs: ids, ContractualStatus: &active})
	if err != nil {
		return 0, err
	}

	deferred := 0
	for _, entry := range current {
		next := entry.Carry()
		next.ContractualStatus = ledger.ContractualInactive
		next.Kind = ledger.KindAutomaticContractExpiration
		ok, err := record(next)
		if err != nil {
			return 0, err
		}
		if !ok {
			deferred++
			continue
		}
		report.EmployeesDeactivated++
	}
	return deferred, nil
}

func (s *Sweeper) expireIntegrations(ctx context.Context, now time.Time, report *Report, record recordFunc) error {
	current, err := s.statuses.ListCurrent(ctx, ledger.CurrentFilter{
		ExcludeStatuses: []ledger.IntegrationStatus{ledger.IntegrationExpired},
	})
	if err != nil {
		return err
	}

	for _, entry := range current {
		if !entry.ExpiredAt(now) {
			continue
		}
		next := entry.Carry()
		next.IntegrationStatus = ledger.IntegrationExpired
		next.Kind = ledger.KindAutomaticIntegrationExpiration
		ok, err := record(next)
		if err != nil {
			return err
		}
		if ok {
			report.IntegrationsExpired++
		}
	}
	return nil
}

func (s *Sweeper) markAbsences(ctx context.Context, now time.Time, report *Report, record recordFunc) error {
	current, err := s.statuses.ListCurrent(ctx, ledger.CurrentFilter{
		Statuses: []ledger.IntegrationStatus{ledger.IntegrationScheduled},
	})
	if err != nil {
		return err
	}

	for _, entry := range current {
		if entry.IntegrationDate == nil {
			continue
		}
		if !entry.IntegrationDate.AddDate(0, 0, s.graceDays).Before(now) {
			continue
		}
		next := entry.Carry()
		next.IntegrationStatus = ledger.IntegrationMissed
		next.Kind = ledger.KindAutomaticAbsence
		ok, err := record(next)
		if err != nil {
			return err
		}
		if ok {
			report.Absences++
		}
	}
	return nil
}
