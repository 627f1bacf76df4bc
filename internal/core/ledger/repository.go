package ledger

import (
	"context"
	"slices"
	"time"
)

// Repository はステータス台帳の永続化の抽象です。追記と参照のみを提供します。
type Repository interface {
	// Append は entry を追記します。社員の最新エントリ ID が entry.PreviousID と一致しない場合は
	// ErrConcurrentModification を返し、何も書き込みません。
	Append(ctx context.Context, entry *StatusEntry) (*StatusEntry, error)
	// Latest は社員の ID 最大のエントリを返します。存在しない場合は ErrNoEntries です。
	Latest(ctx context.Context, employeeID string) (*StatusEntry, error)
	History(ctx context.Context, filter HistoryFilter) ([]*StatusEntry, string, error)
	ListCurrent(ctx context.Context, filter CurrentFilter) ([]*StatusEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*StatusEntry, error)
}

// HistoryFilter は履歴取得用フィルタです。BeforeID が 0 の場合は最新から取得し、Limit が 0 の場合は全件です。
type HistoryFilter struct {
	EmployeeID string
	BeforeID   int64
	Limit      int
}

// CurrentFilter は社員ごとの最新エントリに対する絞り込み条件です。
type CurrentFilter struct {
	EmployeeIDs       []string
	ContractID        string
	CompanyID         string
	Statuses          []IntegrationStatus
	ExcludeStatuses   []IntegrationStatus
	ContractualStatus *ContractualStatus
}

// EntryFilter は履歴全体に対する絞り込み条件です。
type EntryFilter struct {
	Kind              Kind
	Status            IntegrationStatus
	IntegrationFrom   *time.Time
	IntegrationTo     *time.Time
	IntegrationUnitID string
	CompanyID         string
}

// Matches は entry が f の条件を満たすかを返します。
func (f CurrentFilter) Matches(entry *StatusEntry) bool {
	if len(f.EmployeeIDs) > 0 && !slices.Contains(f.EmployeeIDs, entry.EmployeeID) {
		return false
	}
	if f.ContractID != "" && entry.ContractID != f.ContractID {
		return false
	}
	if f.CompanyID != "" && entry.CompanyID != f.CompanyID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, entry.IntegrationStatus) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && slices.Contains(f.ExcludeStatuses, entry.IntegrationStatus) {
		return false
	}
	if f.ContractualStatus != nil && entry.ContractualStatus != *f.ContractualStatus {
		return false
	}
	return true
}

// Matches は entry が f の条件を満たすかを返します。
func (f EntryFilter) Matches(entry *StatusEntry) bool {
	if f.Kind != "" && entry.Kind != f.Kind {
		return false
	}
	if f.Status != "" && entry.IntegrationStatus != f.Status {
		return false
	}
	if f.IntegrationFrom != nil || f.IntegrationTo != nil {
		if entry.IntegrationDate == nil {
			return false
		}
		if f.IntegrationFrom != nil && entry.IntegrationDate.Before(*f.IntegrationFrom) {
			return false
		}
		if f.IntegrationTo != nil && entry.IntegrationDate.After(*f.IntegrationTo) {
			return false
		}
	}
	if f.IntegrationUnitID != "" && entry.Assignment.IntegrationUnit.ID != f.IntegrationUnitID {
		return false
	}
	if f.CompanyID != "" && entry.CompanyID != f.CompanyID {
		return false
	}
	return true
}
