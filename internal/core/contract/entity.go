package contract

import "time"

// Status は契約の状態を表します。契約の状態は StatusChange の最新行から導出されます。
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// ChangeKind は契約状態の変更契機です。
type ChangeKind string

const (
	ChangeCreation            ChangeKind = "creation"
	ChangeAutomaticExpiration ChangeKind = "automatic-contract-expiration"
)

// Contract は請負会社との契約エンティティです。CompanyName は作成時点の会社名を保持します。
type Contract struct {
	ID          string
	Name        string
	CompanyID   string
	CompanyName string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      Status
	CreatedAt   time.Time
}

// StatusChange は契約状態の追記専用履歴です。
type StatusChange struct {
	ID         int64
	ContractID string
	Status     Status
	Kind       ChangeKind
	RecordedAt time.Time
}

// EndedBefore は now 時点で契約終了日を過ぎているかを返します。
func (c *Contract) EndedBefore(now time.Time) bool {
	return c.EndsAt.Before(now)
}
