package contract

import (
	"context"
	"fmt"
	"strings"
	"time"
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

// Service は契約に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateContractInput は契約作成時の入力です。
type CreateContractInput struct {
	Name        string
	CompanyID   string
	CompanyName string
	StartsAt    time.Time
	EndsAt      time.Time
}

// CreateContract は新しい契約を ACTIVE で作成します。
func (s *Service) CreateContract(ctx context.Context, in CreateContractInput) (*Contract, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	companyID := strings.TrimSpace(in.CompanyID)
	if companyID == "" {
		return nil, ErrInvalidCompanyID
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() || in.EndsAt.Before(in.StartsAt) {
		return nil, ErrInvalidDateRange
	}

	var created *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.Create(txCtx, &Contract{
			Name:        name,
			CompanyID:   companyID,
			CompanyName: strings.TrimSpace(in.CompanyName),
			StartsAt:    in.StartsAt.UTC(),
			EndsAt:      in.EndsAt.UTC(),
			Status:      StatusActive,
			CreatedAt:   s.clock.Now(),
		})
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// GetContract は契約を取得します。
func (s *Service) GetContract(ctx context.Context, id string) (*Contract, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var found *Contract
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		c, err := s.repo.FindByID(txCtx, trimmed)
		if err != nil {
			return err
		}
		found = c
		return nil
	}); err != nil {
		return nil, err
	}
	return found, nil
}

// ListExpirable は期限切れへ遷移させるべき契約を返します。
func (s *Service) ListExpirable(ctx context.Context, now time.Time) ([]*Contract, error) {
	var contracts []*Contract
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListExpirable(txCtx, now)
		if err != nil {
			return err
		}
		contracts = found
		return nil
	}); err != nil {
		return nil, err
	}
	return contracts, nil
}

// MarkExpired は契約の状態履歴に EXPIRED を追記します。契約行自体は更新しません。
func (s *Service) MarkExpired(ctx context.Context, contractID string) (*StatusChange, error) {
	trimmed := strings.TrimSpace(contractID)
	if trimmed == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var appended *StatusChange
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		change, err := s.repo.AppendStatus(txCtx, &StatusChange{
			ContractID: trimmed,
			Status:     StatusExpired,
			Kind:       ChangeAutomaticExpiration,
			RecordedAt: s.clock.Now(),
		})
		if err != nil {
			return err
		}
		appended = change
		return nil
	}); err != nil {
		return nil, err
	}
	return appended, nil
}

// History は契約の状態履歴を新しい順に返します。
func (s *Service) History(ctx context.Context, contractID string) ([]*StatusChange, error) {
	trimmed := strings.TrimSpace(contractID)
	if trimmed == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var changes []*StatusChange
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.History(txCtx, trimmed)
		if err != nil {
			return err
		}
		changes = found
		return nil
	}); err != nil {
		return nil, err
	}
	return changes, nil
}
