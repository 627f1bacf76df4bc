package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	pgdb "github.com/ogurasousui/onboarding-compliance/internal/platform/db/postgres"
)

const statusEntrySuccessorConstraint = "status_entries_successor_key"

const statusEntryColumns = `id, previous_id, employee_id, employee_name, contractual_status, integration_status,
               role_id, role_name, position_id, position_name, sector_id, sector_name,
               integration_unit_id, integration_unit_name, activity_unit_id, activity_unit_name,
               company_id, company_name, contract_id, contract_name,
               integration_date, exam_date, exam_validity_days, integration_validity_days,
               exam_expiry_date, integration_expiry_date, scheduling_justification, kind, recorded_at`

// LedgerRepository は PostgreSQL を利用したステータス台帳の実装です。
type LedgerRepository struct {
	pool pgdb.Queryer
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// NewLedgerRepository は LedgerRepository を生成します。
func NewLedgerRepository(pool pgdb.Queryer) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append は社員の最新エントリが entry.PreviousID と一致する場合に限り追記します。
// 同時実行で同じ直前エントリから追記された場合は一意制約との衝突を行なしとして扱い、
// トランザクションを中断させずに ErrConcurrentModification を返します。
func (r *LedgerRepository) Append(ctx context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	a := entry.Assignment
	row := exec.QueryRow(ctx, `
        INSERT INTO status_entries (previous_id, employee_id, employee_name, contractual_status, integration_status,
               role_id, role_name, position_id, position_name, sector_id, sector_name,
               integration_unit_id, integration_unit_name, activity_unit_id, activity_unit_name,
               company_id, company_name, contract_id, contract_name,
               integration_date, exam_date, exam_validity_days, integration_validity_days,
               exam_expiry_date, integration_expiry_date, scheduling_justification, kind, recorded_at)
        SELECT $1::bigint, $2::uuid, $3::text, $4::text, $5::text,
               $6::text, $7::text, $8::text, $9::text, $10::text, $11::text,
               $12::text, $13::text, $14::text, $15::text,
               $16::text, $17::text, $18::uuid, $19::text,
               $20::date, $21::date, $22::integer, $23::integer,
               $24::date, $25::date, $26::text, $27::text, $28::timestamptz
         WHERE (SELECT max(id) FROM status_entries WHERE employee_id = $2::uuid) IS NOT DISTINCT FROM $1::bigint
            ON CONFLICT (employee_id, (COALESCE(previous_id, 0))) DO NOTHING
        RETURNING id
    `,
		nullableID(entry.PreviousID),
		entry.EmployeeID,
		entry.EmployeeName,
		string(entry.ContractualStatus),
		string(entry.IntegrationStatus),
		a.Role.ID, a.Role.Name,
		a.Position.ID, a.Position.Name,
		a.Sector.ID, a.Sector.Name,
		a.IntegrationUnit.ID, a.IntegrationUnit.Name,
		a.ActivityUnit.ID, a.ActivityUnit.Name,
		entry.CompanyID,
		entry.CompanyName,
		entry.ContractID,
		entry.ContractName,
		nullableDate(entry.IntegrationDate),
		nullableDate(entry.ExamDate),
		nullableInt(entry.ExamValidityDays),
		nullableInt(entry.IntegrationValidityDays),
		nullableDate(entry.ExamExpiryDate),
		nullableDate(entry.IntegrationExpiryDate),
		entry.SchedulingJustification,
		string(entry.Kind),
		entry.RecordedAt,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrConcurrentModification
		}
		return nil, translateLedgerPgError(err)
	}

	saved := entry.Clone()
	saved.ID = id
	return saved, nil
}

// Latest は社員の ID 最大のエントリを返します。
func (r *LedgerRepository) Latest(ctx context.Context, employeeID string) (*ledger.StatusEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+statusEntryColumns+`
          FROM status_entries
         WHERE employee_id = $1
         ORDER BY id DESC
         LIMIT 1
    `, employeeID)

	entry, err := scanStatusEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNoEntries
		}
		return nil, translateLedgerPgError(err)
	}
	return entry, nil
}

// History は社員の履歴を新しい順に返します。
func (r *LedgerRepository) History(ctx context.Context, filter ledger.HistoryFilter) ([]*ledger.StatusEntry, string, error) {
	var p placeholders
	p.where("employee_id = " + p.next(filter.EmployeeID))
	if filter.BeforeID > 0 {
		p.where("id < " + p.next(filter.BeforeID))
	}

	limitClause := ""
	if filter.Limit > 0 {
		limitClause = "\n         LIMIT " + p.next(filter.Limit+1)
	}

	query := `
        SELECT ` + statusEntryColumns + `
          FROM status_entries` + p.clause("WHERE") + `
         ORDER BY id DESC` + limitClause + `
    `

	entries, err := r.query(ctx, query, p.args...)
	if err != nil {
		return nil, "", err
	}

	var next string
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
		next = ledger.FormatPageToken(entries[len(entries)-1].ID)
	}
	return entries, next, nil
}

// ListCurrent は社員ごとの最新エントリを条件で絞り込んで返します。
func (r *LedgerRepository) ListCurrent(ctx context.Context, filter ledger.CurrentFilter) ([]*ledger.StatusEntry, error) {
	var p placeholders
	p.where("id IN (SELECT max(id) FROM status_entries GROUP BY employee_id)")
	if len(filter.EmployeeIDs) > 0 {
		p.where("employee_id = ANY(" + p.next(filter.EmployeeIDs) + "::uuid[])")
	}
	if filter.ContractID != "" {
		p.where("contract_id = " + p.next(filter.ContractID))
	}
	if filter.CompanyID != "" {
		p.where("company_id = " + p.next(filter.CompanyID))
	}
	if len(filter.Statuses) > 0 {
		p.where("integration_status = ANY(" + p.next(statusStrings(filter.Statuses)) + "::text[])")
	}
	if len(filter.ExcludeStatuses) > 0 {
		p.where("NOT (integration_status = ANY(" + p.next(statusStrings(filter.ExcludeStatuses)) + "::text[]))")
	}
	if filter.ContractualStatus != nil {
		p.where("contractual_status = " + p.next(string(*filter.ContractualStatus)))
	}

	return r.query(ctx, `
        SELECT `+statusEntryColumns+`
          FROM status_entries`+p.clause("WHERE")+`
         ORDER BY id
    `, p.args...)
}

// ListEntries は履歴全体から条件に一致するエントリを ID 順で返します。
func (r *LedgerRepository) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.StatusEntry, error) {
	var p placeholders
	if filter.Kind != "" {
		p.where("kind = " + p.next(string(filter.Kind)))
	}
	if filter.Status != "" {
		p.where("integration_status = " + p.next(string(filter.Status)))
	}
	if filter.IntegrationFrom != nil {
		p.where("integration_date >= " + p.next(nullableDate(filter.IntegrationFrom)))
	}
	if filter.IntegrationTo != nil {
		p.where("integration_date <= " + p.next(nullableDate(filter.IntegrationTo)))
	}
	if filter.IntegrationUnitID != "" {
		p.where("integration_unit_id = " + p.next(filter.IntegrationUnitID))
	}
	if filter.CompanyID != "" {
		p.where("company_id = " + p.next(filter.CompanyID))
	}

	return r.query(ctx, `
        SELECT `+statusEntryColumns+`
          FROM status_entries`+p.clause("WHERE")+`
         ORDER BY id
    `, p.args...)
}

func (r *LedgerRepository) query(ctx context.Context, query string, args ...any) ([]*ledger.StatusEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateLedgerPgError(err)
	}
	defer rows.Close()

	entries := make([]*ledger.StatusEntry, 0)
	for rows.Next() {
		entry, err := scanStatusEntry(rows)
		if err != nil {
			return nil, translateLedgerPgError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, translateLedgerPgError(err)
	}
	return entries, nil
}

func scanStatusEntry(row pgx.Row) (*ledger.StatusEntry, error) {
	var (
		e                 ledger.StatusEntry
		previousID        sql.NullInt64
		contractual       string
		integration       string
		kind              string
		integrationDate   sql.NullTime
		examDate          sql.NullTime
		examValidity      sql.NullInt32
		integrationValid  sql.NullInt32
		examExpiry        sql.NullTime
		integrationExpiry sql.NullTime
	)
	a := &e.Assignment

	if err := row.Scan(
		&e.ID,
		&previousID,
		&e.EmployeeID,
		&e.EmployeeName,
		&contractual,
		&integration,
		&a.Role.ID, &a.Role.Name,
		&a.Position.ID, &a.Position.Name,
		&a.Sector.ID, &a.Sector.Name,
		&a.IntegrationUnit.ID, &a.IntegrationUnit.Name,
		&a.ActivityUnit.ID, &a.ActivityUnit.Name,
		&e.CompanyID,
		&e.CompanyName,
		&e.ContractID,
		&e.ContractName,
		&integrationDate,
		&examDate,
		&examValidity,
		&integrationValid,
		&examExpiry,
		&integrationExpiry,
		&e.SchedulingJustification,
		&kind,
		&e.RecordedAt,
	); err != nil {
		return nil, err
	}

	if previousID.Valid {
		e.PreviousID = previousID.Int64
	}
	e.ContractualStatus = ledger.ContractualStatus(contractual)
	e.IntegrationStatus = ledger.IntegrationStatus(integration)
	e.Kind = ledger.Kind(kind)
	e.IntegrationDate = datePtr(integrationDate)
	e.ExamDate = datePtr(examDate)
	e.ExamExpiryDate = datePtr(examExpiry)
	e.IntegrationExpiryDate = datePtr(integrationExpiry)
	e.ExamValidityDays = intPtr(examValidity)
	e.IntegrationValidityDays = intPtr(integrationValid)
	e.RecordedAt = e.RecordedAt.UTC()
	return &e, nil
}

func translateLedgerPgError(err error) error {
	if err == nil {
		return nil
	}
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case invalidTextCode:
		return ledger.ErrInvalidEmployeeID
	case uniqueViolationCode:
		if pgErr.ConstraintName == statusEntrySuccessorConstraint {
			return ledger.ErrConcurrentModification
		}
	case foreignKeyViolationCode:
		return employee.ErrEmployeeNotFound
	case checkViolationCode:
		return ledger.ErrInvalidStatus
	}
	return err
}

func statusStrings(statuses []ledger.IntegrationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func datePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}

func intPtr(value sql.NullInt32) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int32)
	return &v
}
