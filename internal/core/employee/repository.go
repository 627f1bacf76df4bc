package employee

import "context"

// Repository は社員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	// Delete は社員を削除します。ステータス履歴と提出書類も同時に削除されます。
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByCompanyAndDocument(ctx context.Context, companyID, document string) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, string, error)
	ListByContract(ctx context.Context, contractID string) ([]*Employee, error)
	Count(ctx context.Context) (int, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。空文字の条件は無視されます。
type ListEmployeesFilter struct {
	CompanyID  string
	ContractID string
	Limit      int
	Offset     int
}
