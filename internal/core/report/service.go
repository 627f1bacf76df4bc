package report

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/failure"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/ogurasousui/onboarding-compliance/internal/core/sweep"
)

var (
	ErrInvalidDateRange = failure.Validation("report: invalid integration date range")
	ErrForeignEmployee  = failure.PermissionDenied("report: employee belongs to another company")
)

// Ledger はレポートが参照する台帳の読み取り操作です。
type Ledger interface {
	CurrentStatus(ctx context.Context, employeeID string) (*ledger.StatusEntry, error)
	History(ctx context.Context, in ledger.HistoryInput) (*ledger.HistoryResult, error)
	ListCurrent(ctx context.Context, filter ledger.CurrentFilter) ([]*ledger.StatusEntry, error)
	ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.StatusEntry, error)
}

// Employees は社員の読み取り操作です。
type Employees interface {
	GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error)
	ListEmployees(ctx context.Context, in employee.ListEmployeesInput) (*employee.ListEmployeesResult, error)
	CountEmployees(ctx context.Context) (int, error)
}

// Documents は書類の読み取り操作です。
type Documents interface {
	Evaluate(ctx context.Context, employeeID, contractID string) (compliance.Result, error)
	CountAwaitingReview(ctx context.Context) (int, error)
}

// SweepTrigger は読み取り前に期限切れ判定を走らせます。
type SweepTrigger interface {
	Fire(ctx context.Context) (sweep.Report, bool)
}

// Service はレポート出力やダッシュボードが必要とする読み取り専用の問い合わせをまとめます。
type Service struct {
	ledger    Ledger
	employees Employees
	docs      Documents
	trigger   SweepTrigger
}

// NewService は Service を生成します。trigger が nil の場合はスイープを起動しません。
func NewService(l Ledger, employees Employees, docs Documents, trigger SweepTrigger) *Service {
	return &Service{ledger: l, employees: employees, docs: docs, trigger: trigger}
}

// Stats はダッシュボードの集計値です。
type Stats struct {
	TotalEmployees    int
	AwaitingDocuments int
	Expired           int
	ByStatus          map[ledger.IntegrationStatus]int
}

// EmployeeRow は社員と現在状態の組です。台帳にエントリがない社員の Current は nil です。
type EmployeeRow struct {
	Employee *employee.Employee
	Current  *ledger.StatusEntry
}

// ListEmployeesInput は社員一覧の入力です。外部会社の主体は自社に限定されます。
type ListEmployeesInput struct {
	CompanyID  string
	ContractID string
	PageSize   int
	PageToken  string
}

// ListEmployeesResult は社員一覧の結果です。
type ListEmployeesResult struct {
	Rows          []EmployeeRow
	NextPageToken string
}

// ScheduledFilter は予約済みインテグレーション一覧の条件です。
type ScheduledFilter struct {
	From              time.Time
	To                time.Time
	IntegrationUnitID string
	CompanyID         string
}

// HistoryInput は社員履歴の入力です。
type HistoryInput struct {
	EmployeeID string
	PageSize   int
	PageToken  string
}

// HistoryView は社員の履歴・現在状態・書類充足状況をまとめたものです。
type HistoryView struct {
	Employee      *employee.Employee
	Current       *ledger.StatusEntry
	Entries       []*ledger.StatusEntry
	NextPageToken string
	Compliance    compliance.Result
}

// DashboardStats はスイープを起動したうえで集計値を返します。
func (s *Service) DashboardStats(ctx context.Context) (*Stats, error) {
	s.fire(ctx)

	total, err := s.employees.CountEmployees(ctx)
	if err != nil {
		return nil, err
	}
	awaiting, err := s.docs.CountAwaitingReview(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.ledger.ListCurrent(ctx, ledger.CurrentFilter{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalEmployees:    total,
		AwaitingDocuments: awaiting,
		ByStatus:          make(map[ledger.IntegrationStatus]int),
	}
	for _, entry := range current {
		stats.ByStatus[entry.IntegrationStatus]++
	}
	stats.Expired = stats.ByStatus[ledger.IntegrationExpired]
	return stats, nil
}

// ListEmployees はスイープを起動したうえで社員と現在状態を返します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	s.fire(ctx)

	companyID := strings.TrimSpace(in.CompanyID)
	if principal, ok := identity.PrincipalFromContext(ctx); ok && principal.IsExternal() {
		companyID = principal.CompanyID
	}

	page, err := s.employees.ListEmployees(ctx, employee.ListEmployeesInput{
		CompanyID:  companyID,
		ContractID: in.ContractID,
		PageSize:   in.PageSize,
		PageToken:  in.PageToken,
	})
	if err != nil {
		return nil, err
	}

	result := &ListEmployeesResult{Rows: make([]EmployeeRow, 0, len(page.Employees)), NextPageToken: page.NextPageToken}
	if len(page.Employees) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(page.Employees))
	for _, e := range page.Employees {
		ids = append(ids, e.ID)
	}
	current, err := s.ledger.ListCurrent(ctx, ledger.CurrentFilter{EmployeeIDs: ids})
	if err != nil {
		return nil, err
	}
	byEmployee := make(map[string]*ledger.StatusEntry, len(current))
	for _, entry := range current {
		byEmployee[entry.EmployeeID] = entry
	}

	for _, e := range page.Employees {
		result.Rows = append(result.Rows, EmployeeRow{Employee: e, Current: byEmployee[e.ID]})
	}
	return result, nil
}

// ScheduledIntegrations は期間内に予約されたインテグレーションを会社名・日付順に返します。
func (s *Service) ScheduledIntegrations(ctx context.Context, filter ScheduledFilter) ([]*ledger.StatusEntry, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, ErrInvalidDateRange
	}
	from := ledger.DateOnly(filter.From)
	to := ledger.DateOnly(filter.To)
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	companyID := strings.TrimSpace(filter.CompanyID)
	if principal, ok := identity.PrincipalFromContext(ctx); ok && principal.IsExternal() {
		companyID = principal.CompanyID
	}

	entries, err := s.ledger.ListEntries(ctx, ledger.EntryFilter{
		Kind:              ledger.KindScheduling,
		Status:            ledger.IntegrationScheduled,
		IntegrationFrom:   &from,
		IntegrationTo:     &to,
		IntegrationUnitID: strings.TrimSpace(filter.IntegrationUnitID),
		CompanyID:         companyID,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CompanyName != b.CompanyName {
			return a.CompanyName < b.CompanyName
		}
		if !a.IntegrationDate.Equal(*b.IntegrationDate) {
			return a.IntegrationDate.Before(*b.IntegrationDate)
		}
		return a.ID < b.ID
	})
	return entries, nil
}

// EmployeeHistory は社員の履歴を新しい順に、現在状態と書類の充足状況とともに返します。
func (s *Service) EmployeeHistory(ctx context.Context, in HistoryInput) (*HistoryView, error) {
	emp, err := s.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: in.EmployeeID})
	if err != nil {
		return nil, err
	}
	if principal, ok := identity.PrincipalFromContext(ctx); ok && principal.IsExternal() && principal.CompanyID != emp.CompanyID {
		return nil, ErrForeignEmployee
	}

	view := &HistoryView{Employee: emp}

	current, err := s.ledger.CurrentStatus(ctx, emp.ID)
	switch {
	case errors.Is(err, ledger.ErrNoEntries):
	case err != nil:
		return nil, err
	default:
		view.Current = current
	}

	history, err := s.ledger.History(ctx, ledger.HistoryInput{EmployeeID: emp.ID, PageSize: in.PageSize, PageToken: in.PageToken})
	if err != nil {
		return nil, err
	}
	view.Entries = history.Entries
	view.NextPageToken = history.NextPageToken

	result, err := s.docs.Evaluate(ctx, emp.ID, emp.ContractID)
	if err != nil {
		return nil, err
	}
	view.Compliance = result
	return view, nil
}

func (s *Service) fire(ctx context.Context) {
	if s.trigger != nil {
		s.trigger.Fire(ctx)
	}
}
