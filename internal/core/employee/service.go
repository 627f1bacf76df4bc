package employee

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
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

// ContractFinder は契約の参照を提供します。
type ContractFinder interface {
	GetContract(ctx context.Context, id string) (*contract.Contract, error)
}

// StatusRecorder はステータス台帳の参照と追記を提供します。
type StatusRecorder interface {
	CurrentStatus(ctx context.Context, employeeID string) (*ledger.StatusEntry, error)
	AppendStatus(ctx context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error)
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo      Repository
	contracts ContractFinder
	statuses  StatusRecorder
	clock     Clock
	tx        TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error
}

// NewService は Service を生成します。
func NewService(repo Repository, contracts ContractFinder, statuses StatusRecorder, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, contracts: contracts, statuses: statuses, clock: clock, tx: tx}
}

// CreateEmployeeInput は社員作成時の入力です。Assignment は作成エントリへ複製されます。
type CreateEmployeeInput struct {
	Name       string
	Document   string
	CompanyID  string
	ContractID string
	Assignment ledger.Assignment
}

// UpdateEmployeeInput は社員更新時の入力です。nil の項目は変更しません。
type UpdateEmployeeInput struct {
	ID         string
	Name       *string
	ContractID *string
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID string
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	CompanyID  string
	ContractID string
	PageSize   int
	PageToken  string
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は社員を作成し、PENDING/ACTIVE の作成エントリを台帳へ追記します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	document, err := normalizeDocument(in.Document)
	if err != nil {
		return nil, err
	}
	companyID := strings.TrimSpace(in.CompanyID)
	if companyID == "" {
		return nil, ErrInvalidCompanyID
	}
	contractID := strings.TrimSpace(in.ContractID)
	if contractID == "" {
		return nil, ErrInvalidContractID
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureDocumentNotRegistered(txCtx, companyID, document); err != nil {
			return err
		}

		c, err := s.contracts.GetContract(txCtx, contractID)
		if err != nil {
			return err
		}
		if c.CompanyID != companyID {
			return ErrContractCompanyMismatch
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Employee{
			Name:       name,
			Document:   document,
			CompanyID:  companyID,
			ContractID: contractID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}

		if _, err := s.statuses.AppendStatus(txCtx, &ledger.StatusEntry{
			EmployeeID:        result.ID,
			EmployeeName:      result.Name,
			ContractualStatus: ledger.ContractualActive,
			IntegrationStatus: ledger.IntegrationPending,
			Assignment:        in.Assignment,
			CompanyID:         c.CompanyID,
			CompanyName:       c.CompanyName,
			ContractID:        c.ID,
			ContractName:      c.Name,
			Kind:              ledger.KindCreation,
			RecordedAt:        now,
		}); err != nil {
			return fmt.Errorf("append creation entry: %w", err)
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は社員名または所属契約を更新します。契約は同じ会社のものに限られます。
// 変更があれば現在のエントリを引き継いだ reassignment エントリを同じトランザクションで追記します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, strings.TrimSpace(in.ID))
		if err != nil {
			return err
		}

		var (
			renamed  bool
			assigned *contract.Contract
		)
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidName
			}
			renamed = name != existing.Name
			existing.Name = name
		}

		if in.ContractID != nil {
			contractID := strings.TrimSpace(*in.ContractID)
			if contractID == "" {
				return ErrInvalidContractID
			}
			if contractID != existing.ContractID {
				c, err := s.contracts.GetContract(txCtx, contractID)
				if err != nil {
					return err
				}
				if c.CompanyID != existing.CompanyID {
					return ErrContractCompanyMismatch
				}
				existing.ContractID = contractID
				assigned = c
			}
		}

		now := s.clock.Now()
		existing.UpdatedAt = now

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		if renamed || assigned != nil {
			if err := s.recordReassignment(txCtx, result, assigned, now); err != nil {
				return fmt.Errorf("append reassignment entry: %w", err)
			}
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) recordReassignment(ctx context.Context, e *Employee, assigned *contract.Contract, now time.Time) error {
	current, err := s.statuses.CurrentStatus(ctx, e.ID)
	if errors.Is(err, ledger.ErrNoEntries) {
		return nil
	}
	if err != nil {
		return err
	}

	next := current.Carry()
	next.EmployeeName = e.Name
	if assigned != nil {
		next.ContractID = assigned.ID
		next.ContractName = assigned.Name
		next.CompanyName = assigned.CompanyName
		next.ContractualStatus = ledger.ContractualActive
		if assigned.Status == contract.StatusExpired {
			next.ContractualStatus = ledger.ContractualInactive
		}
	}
	next.Kind = ledger.KindReassignment
	next.RecordedAt = now

	_, err = s.statuses.AppendStatus(ctx, next)
	return err
}

// DeleteEmployee は社員を削除します。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, strings.TrimSpace(in.ID))
	})
}

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, strings.TrimSpace(in.ID))
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListEmployees は社員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var (
		employees []*Employee
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resultEmployees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			CompanyID:  strings.TrimSpace(in.CompanyID),
			ContractID: strings.TrimSpace(in.ContractID),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		employees = resultEmployees
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

// ListByContract は契約に所属する社員を全件返します。
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]*Employee, error) {
	trimmed := strings.TrimSpace(contractID)
	if trimmed == "" {
		return nil, ErrInvalidContractID
	}

	var employees []*Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListByContract(txCtx, trimmed)
		if err != nil {
			return err
		}
		employees = found
		return nil
	}); err != nil {
		return nil, err
	}
	return employees, nil
}

// CountEmployees は登録済み社員数を返します。
func (s *Service) CountEmployees(ctx context.Context) (int, error) {
	var count int
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		n, err := s.repo.Count(txCtx)
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

func (s *Service) ensureDocumentNotRegistered(ctx context.Context, companyID, document string) error {
	emp, err := s.repo.FindByCompanyAndDocument(ctx, companyID, document)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil {
		return ErrDocumentAlreadyRegistered
	}
	return nil
}

// normalizeDocument は区切り文字を除いた書類番号を返します。
func normalizeDocument(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r == '.', r == '-', r == '/', r == ' ':
		default:
			return "", ErrInvalidDocument
		}
	}
	if b.Len() == 0 {
		return "", ErrInvalidDocument
	}
	return b.String(), nil
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
