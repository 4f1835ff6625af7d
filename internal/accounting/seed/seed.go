// Package seed loads a ledger into the FrontAccounting tables read by
// accounting.Repository.
package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting/ledger"
)

// Writer is the part of pgx.Tx used to load a ledger.
type Writer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Schema creates the tables when missing. Statements run one at a time.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS chart_class (
	cid bigint PRIMARY KEY,
	class_name text NOT NULL,
	ctype integer NOT NULL,
	inactive boolean NOT NULL DEFAULT false
)`,
	`CREATE TABLE IF NOT EXISTS chart_types (
	id bigint PRIMARY KEY,
	name text NOT NULL,
	class_id bigint NOT NULL REFERENCES chart_class (cid),
	parent bigint REFERENCES chart_types (id),
	inactive boolean NOT NULL DEFAULT false
)`,
	`CREATE TABLE IF NOT EXISTS chart_master (
	account_code text PRIMARY KEY,
	account_name text NOT NULL,
	account_type bigint NOT NULL REFERENCES chart_types (id),
	inactive boolean NOT NULL DEFAULT false
)`,
	`CREATE TABLE IF NOT EXISTS gl_trans (
	counter bigserial PRIMARY KEY,
	type integer NOT NULL,
	type_no bigint NOT NULL,
	tran_date date NOT NULL,
	account text NOT NULL,
	memo_ text,
	amount numeric(20, 2) NOT NULL DEFAULT 0,
	dimension_id bigint NOT NULL DEFAULT 0,
	dimension2_id bigint NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS gl_trans_account_date ON gl_trans (account, tran_date)`,
	`CREATE INDEX IF NOT EXISTS gl_trans_type_no ON gl_trans (type, type_no)`,
	`CREATE TABLE IF NOT EXISTS budget_trans (
	id bigserial PRIMARY KEY,
	tran_date date NOT NULL,
	account text NOT NULL,
	amount numeric(20, 2) NOT NULL DEFAULT 0,
	dimension_id bigint NOT NULL DEFAULT 0,
	dimension2_id bigint NOT NULL DEFAULT 0
)`,
}

const truncate = `TRUNCATE gl_trans, budget_trans, chart_master, chart_types, chart_class`

// resetCounter moves the gl_trans sequence past the copied counters.
const resetCounter = `SELECT setval(pg_get_serial_sequence('gl_trans', 'counter'), COALESCE(MAX(counter), 1)) FROM gl_trans`

// Options controls Load.
type Options struct {
	// Truncate empties every table before loading.
	Truncate bool
}

// Stats counts the rows written per table.
type Stats struct {
	Classes  int64
	Types    int64
	Accounts int64
	Entries  int64
	Budget   int64
}

// Load creates the schema and copies contents into it. Run it inside a
// transaction so a failed load leaves the tables untouched.
func Load(ctx context.Context, w Writer, contents ledger.Contents, opts Options) (Stats, error) {
	for _, stmt := range Schema {
		if _, err := w.Exec(ctx, stmt); err != nil {
			return Stats{}, fmt.Errorf("seed: schema: %w", err)
		}
	}
	if opts.Truncate {
		if _, err := w.Exec(ctx, truncate); err != nil {
			return Stats{}, fmt.Errorf("seed: truncate: %w", err)
		}
	}

	var (
		stats Stats
		err   error
	)
	stats.Classes, err = w.CopyFrom(ctx, pgx.Identifier{"chart_class"}, []string{"cid", "class_name", "ctype"},
		pgx.CopyFromSlice(len(contents.Classes), func(i int) ([]any, error) {
			c := contents.Classes[i]
			return []any{c.ID, c.Name, c.Kind.Code()}, nil
		}))
	if err != nil {
		return stats, fmt.Errorf("seed: chart_class: %w", err)
	}
	stats.Types, err = w.CopyFrom(ctx, pgx.Identifier{"chart_types"}, []string{"id", "name", "class_id", "parent"},
		pgx.CopyFromSlice(len(contents.Types), func(i int) ([]any, error) {
			t := contents.Types[i]
			return []any{t.ID, t.Name, t.ClassID, t.ParentID}, nil
		}))
	if err != nil {
		return stats, fmt.Errorf("seed: chart_types: %w", err)
	}
	stats.Accounts, err = w.CopyFrom(ctx, pgx.Identifier{"chart_master"}, []string{"account_code", "account_name", "account_type"},
		pgx.CopyFromSlice(len(contents.Accounts), func(i int) ([]any, error) {
			a := contents.Accounts[i]
			return []any{a.Code, a.Name, a.TypeID}, nil
		}))
	if err != nil {
		return stats, fmt.Errorf("seed: chart_master: %w", err)
	}
	stats.Entries, err = w.CopyFrom(ctx, pgx.Identifier{"gl_trans"},
		[]string{"counter", "type", "type_no", "tran_date", "account", "memo_", "amount", "dimension_id", "dimension2_id"},
		pgx.CopyFromSlice(len(contents.Entries), func(i int) ([]any, error) {
			e := contents.Entries[i]
			return []any{e.Counter, int32(e.Type), e.SequenceNo, e.Date, e.AccountCode, e.Memo, numeric(e.Amount), e.Dimension1, e.Dimension2}, nil
		}))
	if err != nil {
		return stats, fmt.Errorf("seed: gl_trans: %w", err)
	}
	stats.Budget, err = w.CopyFrom(ctx, pgx.Identifier{"budget_trans"},
		[]string{"tran_date", "account", "amount", "dimension_id", "dimension2_id"},
		pgx.CopyFromSlice(len(contents.Budget), func(i int) ([]any, error) {
			b := contents.Budget[i]
			return []any{b.Date, b.AccountCode, numeric(b.Amount), b.Dimension1, b.Dimension2}, nil
		}))
	if err != nil {
		return stats, fmt.Errorf("seed: budget_trans: %w", err)
	}
	if _, err := w.Exec(ctx, resetCounter); err != nil {
		return stats, fmt.Errorf("seed: reset counter: %w", err)
	}
	return stats, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
