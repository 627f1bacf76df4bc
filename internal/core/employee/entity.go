package employee

import "time"

// Employee は請負会社の社員エンティティです。
// 所属会社と契約の参照以外は作成後に変更されません。
type Employee struct {
	ID         string
	Name       string
	Document   string
	CompanyID  string
	ContractID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
