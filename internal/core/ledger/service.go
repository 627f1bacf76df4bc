package ledger

import (
	"context"
	"fmt"
	"strconv"
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

const maxHistoryPageSize = 500

// Service はステータス台帳のユースケースをまとめます。
// 「現在の状態」の判定はすべて CurrentStatus を経由させ、呼び出し側で独自に最新行を求めないでください。
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

// HistoryInput は履歴取得時の入力です。PageSize が 0 以下の場合は全件を返します。
type HistoryInput struct {
	EmployeeID string
	PageSize   int
	PageToken  string
}

// HistoryResult は履歴取得結果です。Entries は新しい順に並びます。
type HistoryResult struct {
	Entries       []*StatusEntry
	NextPageToken string
}

// AppendStatus はエントリを追記します。既存エントリの更新は行いません。
func (s *Service) AppendStatus(ctx context.Context, entry *StatusEntry) (*StatusEntry, error) {
	if entry == nil {
		return nil, ErrInvalidStatus
	}
	if strings.TrimSpace(entry.EmployeeID) == "" {
		return nil, ErrInvalidEmployeeID
	}
	if !IsValidIntegrationStatus(entry.IntegrationStatus) {
		return nil, fmt.Errorf("integration status %q: %w", entry.IntegrationStatus, ErrInvalidStatus)
	}
	if !IsValidContractualStatus(entry.ContractualStatus) {
		return nil, fmt.Errorf("contractual status %q: %w", entry.ContractualStatus, ErrInvalidStatus)
	}
	if !IsValidKind(entry.Kind) {
		return nil, fmt.Errorf("kind %q: %w", entry.Kind, ErrInvalidKind)
	}

	toSave := entry.Clone()
	if toSave.RecordedAt.IsZero() {
		toSave.RecordedAt = s.clock.Now()
	}

	var appended *StatusEntry
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.Append(txCtx, toSave)
		if err != nil {
			return err
		}
		appended = result
		return nil
	}); err != nil {
		return nil, err
	}

	return appended, nil
}

// CurrentStatus は社員の現在のステータス(ID 最大のエントリ)を返します。
func (s *Service) CurrentStatus(ctx context.Context, employeeID string) (*StatusEntry, error) {
	id := strings.TrimSpace(employeeID)
	if id == "" {
		return nil, ErrInvalidEmployeeID
	}

	var current *StatusEntry
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.Latest(txCtx, id)
		if err != nil {
			return err
		}
		current = found
		return nil
	}); err != nil {
		return nil, err
	}

	return current, nil
}

// History は社員のステータス履歴を新しい順に返します。
func (s *Service) History(ctx context.Context, in HistoryInput) (*HistoryResult, error) {
	id := strings.TrimSpace(in.EmployeeID)
	if id == "" {
		return nil, ErrInvalidEmployeeID
	}
	if in.PageSize > maxHistoryPageSize {
		return nil, ErrInvalidPageSize
	}
	limit := in.PageSize
	if limit < 0 {
		limit = 0
	}

	beforeID, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var result HistoryResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		entries, next, err := s.repo.History(txCtx, HistoryFilter{
			EmployeeID: id,
			BeforeID:   beforeID,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		result.Entries = entries
		result.NextPageToken = next
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListCurrent は社員ごとの最新エントリのうち filter に一致するものを返します。
func (s *Service) ListCurrent(ctx context.Context, filter CurrentFilter) ([]*StatusEntry, error) {
	var entries []*StatusEntry
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListCurrent(txCtx, filter)
		if err != nil {
			return err
		}
		entries = found
		return nil
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListEntries は履歴全体から filter に一致するエントリを返します。
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]*StatusEntry, error) {
	var entries []*StatusEntry
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListEntries(txCtx, filter)
		if err != nil {
			return err
		}
		entries = found
		return nil
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

// FormatPageToken は履歴のページトークンを生成します。
func FormatPageToken(lastID int64) string {
	if lastID <= 0 {
		return ""
	}
	return strconv.FormatInt(lastID, 10)
}

func parsePageToken(token string) (int64, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPageToken
	}
	return id, nil
}
