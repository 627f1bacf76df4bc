package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	pgdb "github.com/ogurasousui/onboarding-compliance/internal/platform/db/postgres"
)

const contractCurrentStatus = `(SELECT h.status FROM contract_status_history h WHERE h.contract_id = c.id ORDER BY h.id DESC LIMIT 1)`

// ContractRepository は PostgreSQL を利用した契約永続化の実装です。
type ContractRepository struct {
	pool pgdb.Queryer
}

var _ contract.Repository = (*ContractRepository)(nil)

// NewContractRepository は ContractRepository を生成します。
func NewContractRepository(pool pgdb.Queryer) *ContractRepository {
	return &ContractRepository{pool: pool}
}

// Create は契約と作成時の履歴を同一ステートメントで保存します。
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO contracts (name, company_id, company_name, starts_at, ends_at, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, name, company_id, company_name, starts_at, ends_at, created_at
        ), history AS (
            INSERT INTO contract_status_history (contract_id, status, kind, recorded_at)
            SELECT id, $7::text, $8::text, created_at FROM inserted
        )
        SELECT id, name, company_id, company_name, starts_at, ends_at, $7::text, created_at
          FROM inserted
    `,
		c.Name,
		c.CompanyID,
		c.CompanyName,
		nullableDate(&c.StartsAt),
		nullableDate(&c.EndsAt),
		c.CreatedAt,
		string(contract.StatusActive),
		string(contract.ChangeCreation),
	)

	created, err := scanContract(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return created, nil
}

// FindByID は ID で契約を取得します。状態は履歴の最新行から求めます。
func (r *ContractRepository) FindByID(ctx context.Context, id string) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT c.id, c.name, c.company_id, c.company_name, c.starts_at, c.ends_at, `+contractCurrentStatus+`, c.created_at
          FROM contracts c
         WHERE c.id = $1
         LIMIT 1
    `, id)

	found, err := scanContract(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return found, nil
}

// ListExpirable は現在 ACTIVE で終了日が now より前の契約を返します。
func (r *ContractRepository) ListExpirable(ctx context.Context, now time.Time) ([]*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, name, company_id, company_name, starts_at, ends_at, status, created_at
          FROM (
            SELECT c.id, c.name, c.company_id, c.company_name, c.starts_at, c.ends_at, `+contractCurrentStatus+` AS status, c.created_at
              FROM contracts c
             WHERE c.ends_at < $1::timestamptz
          ) current
         WHERE status = $2
         ORDER BY ends_at, id
    `, now, string(contract.StatusActive))
	if err != nil {
		return nil, translateContractPgError(err)
	}
	defer rows.Close()

	contracts := make([]*contract.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, translateContractPgError(err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translateContractPgError(err)
	}
	return contracts, nil
}

// AppendStatus は契約の状態履歴へ追記します。
func (r *ContractRepository) AppendStatus(ctx context.Context, change *contract.StatusChange) (*contract.StatusChange, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO contract_status_history (contract_id, status, kind, recorded_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, contract_id, status, kind, recorded_at
    `, change.ContractID, string(change.Status), string(change.Kind), change.RecordedAt)

	saved, err := scanStatusChange(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return saved, nil
}

// History は契約の状態履歴を新しい順に返します。
func (r *ContractRepository) History(ctx context.Context, contractID string) ([]*contract.StatusChange, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, contract_id, status, kind, recorded_at
          FROM contract_status_history
         WHERE contract_id = $1
         ORDER BY id DESC
    `, contractID)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	defer rows.Close()

	changes := make([]*contract.StatusChange, 0)
	for rows.Next() {
		ch, err := scanStatusChange(rows)
		if err != nil {
			return nil, translateContractPgError(err)
		}
		changes = append(changes, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, translateContractPgError(err)
	}
	return changes, nil
}

func scanContract(row pgx.Row) (*contract.Contract, error) {
	var (
		c      contract.Contract
		status string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.CompanyID, &c.CompanyName, &c.StartsAt, &c.EndsAt, &status, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = contract.Status(status)
	c.StartsAt = c.StartsAt.UTC()
	c.EndsAt = c.EndsAt.UTC()
	return &c, nil
}

func scanStatusChange(row pgx.Row) (*contract.StatusChange, error) {
	var (
		ch     contract.StatusChange
		status string
		kind   string
	)
	if err := row.Scan(&ch.ID, &ch.ContractID, &status, &kind, &ch.RecordedAt); err != nil {
		return nil, err
	}
	ch.Status = contract.Status(status)
	ch.Kind = contract.ChangeKind(kind)
	return &ch, nil
}

func translateContractPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.ErrContractNotFound
	}
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case invalidTextCode, foreignKeyViolationCode:
		return contract.ErrContractNotFound
	case checkViolationCode:
		if pgErr.ConstraintName == "contracts_period_check" {
			return contract.ErrInvalidDateRange
		}
		return contract.ErrInvalidStatus
	}
	return err
}
