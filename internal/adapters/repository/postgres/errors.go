package postgres

import (
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	// invalidTextCode は UUID 列に不正な文字列を渡した場合などに返されます。
	invalidTextCode         = "22P02"
)

// pgError は err に含まれる PostgreSQL エラーを返します。
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// placeholders は動的に組み立てる WHERE 句と引数を保持します。
type placeholders struct {
	conditions []string
	args       []any
}

// next は引数を追加し、対応するプレースホルダを返します。
func (p *placeholders) next(arg any) string {
	p.args = append(p.args, arg)
	return "$" + strconv.Itoa(len(p.args))
}

func (p *placeholders) where(condition string) {
	p.conditions = append(p.conditions, condition)
}

func (p *placeholders) clause(prefix string) string {
	if len(p.conditions) == 0 {
		return ""
	}
	out := " " + prefix + " " + p.conditions[0]
	for _, c := range p.conditions[1:] {
		out += " AND " + c
	}
	return out
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return int32(*value)
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}
