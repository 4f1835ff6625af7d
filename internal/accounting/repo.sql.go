package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/platform/db"
)

// Querier is the read surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads the chart of accounts and general ledger from Postgres.
type Repository struct {
	pool *pgxpool.Pool
	db   Querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// NewRepositoryWithQuerier binds the repository to an arbitrary querier such as an open transaction.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{db: q}
}

var (
	_ Backend           = (*Repository)(nil)
	_ BatchLedgerSource = (*Repository)(nil)
	_ Snapshotter       = (*Repository)(nil)
)

// Snapshot runs fn against a repository bound to a read-only RepeatableRead
// transaction. Without a pool fn runs against the current querier.
func (r *Repository) Snapshot(ctx context.Context, fn func(context.Context, Backend) error) error {
	if r == nil || r.db == nil {
		return ErrRepositoryNotInitialised
	}
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewRepositoryWithQuerier(tx))
	})
}

// FetchClasses lists active account classes in code order.
func (r *Repository) FetchClasses(ctx context.Context) ([]AccountClass, error) {
	if r == nil || r.db == nil {
		return nil, ErrRepositoryNotInitialised
	}
	rows, err := r.db.Query(ctx, `SELECT cid, class_name, ctype FROM chart_class WHERE NOT inactive ORDER BY cid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var classes []AccountClass
	for rows.Next() {
		var (
			c     AccountClass
			ctype int
		)
		if err := rows.Scan(&c.ID, &c.Name, &ctype); err != nil {
			return nil, err
		}
		kind, err := ClassKindFromCode(ctype)
		if err != nil {
			return nil, fmt.Errorf("accounting: class %d: %w", c.ID, err)
		}
		c.Kind = kind
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// FetchTypes lists the account types of a class directly below parentTypeID,
// or the top-level types when parentTypeID is nil.
func (r *Repository) FetchTypes(ctx context.Context, classID int64, parentTypeID *int64) ([]AccountType, error) {
	if r == nil || r.db == nil {
		return nil, ErrRepositoryNotInitialised
	}
	var (
		rows pgx.Rows
		err  error
	)
	if parentTypeID == nil {
		rows, err = r.db.Query(ctx, `SELECT id, name, class_id, parent FROM chart_types
WHERE class_id=$1 AND parent IS NULL AND NOT inactive ORDER BY id`, classID)
	} else {
		rows, err = r.db.Query(ctx, `SELECT id, name, class_id, parent FROM chart_types
WHERE class_id=$1 AND parent=$2 AND NOT inactive ORDER BY id`, classID, *parentTypeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []AccountType
	for rows.Next() {
		var t AccountType
		if err := rows.Scan(&t.ID, &t.Name, &t.ClassID, &t.ParentID); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// FetchAccounts lists the active accounts of a type in code order.
func (r *Repository) FetchAccounts(ctx context.Context, typeID int64) ([]Account, error) {
	if r == nil || r.db == nil {
		return nil, ErrRepositoryNotInitialised
	}
	rows, err := r.db.Query(ctx, `SELECT account_code, account_name, account_type FROM chart_master
WHERE account_type=$1 AND NOT inactive ORDER BY account_code`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Code, &a.Name, &a.TypeID); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// FetchSum totals one account over a window.
func (r *Repository) FetchSum(ctx context.Context, accountCode string, w periods.Window, dims Dimensions) (decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return decimal.Zero, ErrRepositoryNotInitialised
	}
	cond, args := windowClause(w, dims, 2)
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0)::text FROM %s WHERE account=$1 AND %s`, ledgerTable(w), cond)
	var raw string
	if err := r.db.QueryRow(ctx, query, append([]any{accountCode}, args...)...).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return parseAmount(raw)
}

// FetchSums totals many accounts over a window in a single statement.
func (r *Repository) FetchSums(ctx context.Context, codes []string, w periods.Window, dims Dimensions) (map[string]decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return nil, ErrRepositoryNotInitialised
	}
	sums := make(map[string]decimal.Decimal, len(codes))
	if len(codes) == 0 {
		return sums, nil
	}
	cond, args := windowClause(w, dims, 2)
	query := fmt.Sprintf(`SELECT account, COALESCE(SUM(amount), 0)::text FROM %s WHERE account = ANY($1) AND %s GROUP BY account`, ledgerTable(w), cond)
	rows, err := r.db.Query(ctx, query, append([]any{codes}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		amount, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		sums[code] = amount
	}
	return sums, rows.Err()
}

const rowsQuery = `SELECT g.counter, g.type, g.type_no, g.tran_date, g.account, COALESCE(m.account_name, ''),
g.amount::text, COALESCE(g.memo_, ''), g.dimension_id, g.dimension2_id
FROM gl_trans g LEFT JOIN chart_master m ON m.account_code = g.account
WHERE g.tran_date BETWEEN $1 AND $2
AND ($3::bigint = 0 OR g.dimension_id = $3)
AND ($4::bigint = 0 OR g.dimension2_id = $4)
AND (cardinality($5::int[]) = 0 OR g.type = ANY($5))
AND ($6 = '' OR g.account = $6)
AND g.amount <> 0
ORDER BY g.tran_date, g.type, g.type_no, g.counter`

// FetchRows lists non-zero ledger lines dated within [from, to].
func (r *Repository) FetchRows(ctx context.Context, from, to time.Time, filter RowFilter) ([]LedgerRow, error) {
	if r == nil || r.db == nil {
		return nil, ErrRepositoryNotInitialised
	}
	types := make([]int32, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, int32(t))
	}
	rows, err := r.db.Query(ctx, rowsQuery, periods.Day(from), periods.Day(to),
		filter.Dimension1, filter.Dimension2, types, filter.AccountCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var (
			row LedgerRow
			raw string
		)
		if err := rows.Scan(&row.Counter, &row.Type, &row.SequenceNo, &row.Date, &row.AccountCode,
			&row.AccountName, &raw, &row.Memo, &row.Dimension1, &row.Dimension2); err != nil {
			return nil, err
		}
		if row.Amount, err = parseAmount(raw); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func ledgerTable(w periods.Window) string {
	if w.Budget() {
		return "budget_trans"
	}
	return "gl_trans"
}

// windowClause renders the date and dimension predicate for w with
// placeholders numbered from first.
func windowClause(w periods.Window, dims Dimensions, first int) (string, []any) {
	var (
		cond string
		args []any
	)
	if w.Kind == periods.KindBroughtForward {
		cond = fmt.Sprintf("tran_date < $%d", first)
		args = []any{periods.Day(w.To)}
		first++
	} else {
		cond = fmt.Sprintf("tran_date BETWEEN $%d AND $%d", first, first+1)
		args = []any{periods.Day(w.From), periods.Day(w.To)}
		first += 2
	}
	cond += fmt.Sprintf(" AND ($%d::bigint = 0 OR dimension_id = $%d) AND ($%d::bigint = 0 OR dimension2_id = $%d)", first, first, first+1, first+1)
	args = append(args, dims.Dimension1, dims.Dimension2)
	return cond, args
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("accounting: parse amount %q: %w", raw, err)
	}
	return amount, nil
}
