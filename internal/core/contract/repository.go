package contract

import (
	"context"
	"time"
)

// Repository は契約エンティティの永続化を行うインターフェースです。
type Repository interface {
	// Create は契約と初期状態(ACTIVE)の履歴を保存します。
	Create(ctx context.Context, contract *Contract) (*Contract, error)
	FindByID(ctx context.Context, id string) (*Contract, error)
	// ListExpirable は現在の状態が ACTIVE かつ終了日が now より前の契約を返します。
	ListExpirable(ctx context.Context, now time.Time) ([]*Contract, error)
	AppendStatus(ctx context.Context, change *StatusChange) (*StatusChange, error)
	History(ctx context.Context, contractID string) ([]*StatusChange, error)
}
