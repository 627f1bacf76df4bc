package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	pgdb "github.com/ogurasousui/onboarding-compliance/internal/platform/db/postgres"
)

const employeeColumns = `id, name, document, company_id, contract_id, created_at, updated_at`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

var _ employee.Repository = (*EmployeeRepository)(nil)

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (name, document, company_id, contract_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+employeeColumns+`
    `, e.Name, e.Document, e.CompanyID, e.ContractID, e.CreatedAt, e.UpdatedAt)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は社員名と所属契約を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET name = $1,
               contract_id = $2,
               updated_at = $3
         WHERE id = $4
        RETURNING `+employeeColumns+`
    `, e.Name, e.ContractID, e.UpdatedAt, e.ID)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// Delete は社員を削除します。ステータス履歴と提出書類は外部キーの ON DELETE CASCADE で削除されます。
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByCompanyAndDocument は会社 ID と正規化済みの書類番号で検索します。
func (r *EmployeeRepository) FindByCompanyAndDocument(ctx context.Context, companyID, document string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE company_id = $1 AND document = $2
         LIMIT 1
    `, companyID, document)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は社員の一覧を作成順に取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	var p placeholders
	if companyID := strings.TrimSpace(filter.CompanyID); companyID != "" {
		p.where("company_id = " + p.next(companyID))
	}
	if contractID := strings.TrimSpace(filter.ContractID); contractID != "" {
		p.where("contract_id = " + p.next(contractID))
	}
	limitPlaceholder := p.next(limitWithBuffer)
	offsetPlaceholder := p.next(filter.Offset)

	query := `
        SELECT ` + employeeColumns + `
          FROM employees` + p.clause("WHERE") + `
         ORDER BY created_at, id
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	employees, err := r.query(ctx, query, p.args...)
	if err != nil {
		return nil, "", err
	}

	var nextToken string
	if len(employees) == limitWithBuffer {
		employees = employees[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}
	return employees, nextToken, nil
}

// ListByContract は契約に所属する全社員を返します。
func (r *EmployeeRepository) ListByContract(ctx context.Context, contractID string) ([]*employee.Employee, error) {
	return r.query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE contract_id = $1
         ORDER BY created_at, id
    `, contractID)
}

// Count は登録済みの社員数を返します。
func (r *EmployeeRepository) Count(ctx context.Context) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var count int64
	if err := exec.QueryRow(ctx, `SELECT count(*) FROM employees`).Scan(&count); err != nil {
		return 0, translateEmployeePgError(err)
	}
	return int(count), nil
}

func (r *EmployeeRepository) query(ctx context.Context, query string, args ...any) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var e employee.Employee
	if err := row.Scan(&e.ID, &e.Name, &e.Document, &e.CompanyID, &e.ContractID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case invalidTextCode:
		return employee.ErrEmployeeNotFound
	case uniqueViolationCode:
		return employee.ErrDocumentAlreadyRegistered
	case foreignKeyViolationCode:
		if pgErr.ConstraintName == "employees_contract_id_fkey" {
			return contract.ErrContractNotFound
		}
	}
	return err
}
