package accounting

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
)

type stubQuery struct {
	sql  string
	args []any
}

type stubDB struct {
	rows    [][]any
	row     []any
	err     error
	queries []stubQuery
}

func (s *stubDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.queries = append(s.queries, stubQuery{sql: sql, args: args})
	if s.err != nil {
		return nil, s.err
	}
	return &stubRows{values: s.rows, index: -1}, nil
}

func (s *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.queries = append(s.queries, stubQuery{sql: sql, args: args})
	if s.row == nil {
		return &stubRow{err: pgx.ErrNoRows}
	}
	return &stubRow{values: s.row}
}

type stubRows struct {
	values [][]any
	index  int
}

func (r *stubRows) Close() {
	r.index = len(r.values)
}

func (r *stubRows) Err() error {
	return nil
}

func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (r *stubRows) Next() bool {
	if r.index+1 >= len(r.values) {
		r.index = len(r.values)
		return false
	}
	r.index++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.index < 0 || r.index >= len(r.values) {
		return fmt.Errorf("no row available")
	}
	return assign(r.values[r.index], dest)
}

func (r *stubRows) Values() ([]any, error) {
	if r.index < 0 || r.index >= len(r.values) {
		return nil, fmt.Errorf("no row available")
	}
	return r.values[r.index], nil
}

func (r *stubRows) RawValues() [][]byte {
	return nil
}

func (r *stubRows) Conn() *pgx.Conn {
	return nil
}

type stubRow struct {
	values []any
	err    error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		value := reflect.ValueOf(v)
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %T to %s", i, v, target.Type())
		}
		target.Set(value)
	}
	return nil
}

func TestRepositoryFetchClassesMapsKinds(t *testing.T) {
	db := &stubDB{rows: [][]any{
		{int64(1), "Assets", 1},
		{int64(4), "Income", 4},
		{int64(5), "Cost of Goods Sold", 5},
	}}
	repo := NewRepositoryWithQuerier(db)
	classes, err := repo.FetchClasses(context.Background())
	if err != nil {
		t.Fatalf("FetchClasses() error = %v", err)
	}
	want := []ClassKind{ClassAsset, ClassIncome, ClassExpense}
	if len(classes) != len(want) {
		t.Fatalf("expected %d classes got %d", len(want), len(classes))
	}
	for i, kind := range want {
		if classes[i].Kind != kind {
			t.Fatalf("class %d: expected %s got %s", i, kind, classes[i].Kind)
		}
	}
}

func TestRepositoryFetchClassesRejectsUnknownType(t *testing.T) {
	db := &stubDB{rows: [][]any{{int64(9), "Other", 9}}}
	_, err := NewRepositoryWithQuerier(db).FetchClasses(context.Background())
	if !errors.Is(err, ErrUnknownClassKind) {
		t.Fatalf("expected ErrUnknownClassKind got %v", err)
	}
}

func TestRepositoryFetchTypesTopLevel(t *testing.T) {
	parent := int64(10)
	db := &stubDB{rows: [][]any{
		{int64(10), "Current Assets", int64(1), nil},
		{int64(11), "Bank", int64(1), &parent},
	}}
	repo := NewRepositoryWithQuerier(db)

	types, err := repo.FetchTypes(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("FetchTypes() error = %v", err)
	}
	if types[0].ParentID != nil || types[1].ParentID == nil || *types[1].ParentID != 10 {
		t.Fatalf("unexpected parents %+v", types)
	}
	if !strings.Contains(db.queries[0].sql, "parent IS NULL") || len(db.queries[0].args) != 1 {
		t.Fatalf("top-level query should filter on null parent: %s", db.queries[0].sql)
	}

	if _, err := repo.FetchTypes(context.Background(), 1, &parent); err != nil {
		t.Fatalf("FetchTypes(child) error = %v", err)
	}
	if got := db.queries[1].args; len(got) != 2 || got[1] != int64(10) {
		t.Fatalf("unexpected child args %v", got)
	}
}

func TestRepositoryFetchSumWindows(t *testing.T) {
	db := &stubDB{row: []any{"12.50"}}
	repo := NewRepositoryWithQuerier(db)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	sum, err := repo.FetchSum(ctx, "1060", periods.Window{Name: "bf", Kind: periods.KindBroughtForward, To: from}, Dimensions{Dimension1: 3})
	if err != nil {
		t.Fatalf("FetchSum() error = %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5 got %s", sum)
	}
	q := db.queries[0]
	if !strings.Contains(q.sql, "FROM gl_trans") || !strings.Contains(q.sql, "tran_date < $2") {
		t.Fatalf("unexpected brought forward sql %s", q.sql)
	}
	if len(q.args) != 4 || q.args[0] != "1060" || q.args[2] != int64(3) {
		t.Fatalf("unexpected args %v", q.args)
	}

	if _, err := repo.FetchSum(ctx, "4010", periods.Window{Name: "budget", Kind: periods.KindBudget, From: from, To: to}, Dimensions{}); err != nil {
		t.Fatalf("FetchSum(budget) error = %v", err)
	}
	q = db.queries[1]
	if !strings.Contains(q.sql, "FROM budget_trans") || !strings.Contains(q.sql, "BETWEEN $2 AND $3") || len(q.args) != 5 {
		t.Fatalf("unexpected budget query %s %v", q.sql, q.args)
	}
}

func TestRepositoryFetchSumsBatches(t *testing.T) {
	db := &stubDB{rows: [][]any{{"1060", "100.00"}, {"1200", "-40.25"}}}
	repo := NewRepositoryWithQuerier(db)
	w := periods.Window{Name: "current", Kind: periods.KindPeriod, From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}

	sums, err := repo.FetchSums(context.Background(), []string{"1060", "1200", "1300"}, w, Dimensions{})
	if err != nil {
		t.Fatalf("FetchSums() error = %v", err)
	}
	if len(db.queries) != 1 || !strings.Contains(db.queries[0].sql, "GROUP BY account") {
		t.Fatalf("expected a single grouped query, got %d", len(db.queries))
	}
	if !sums["1200"].Equal(decimal.RequireFromString("-40.25")) {
		t.Fatalf("unexpected 1200 sum %s", sums["1200"])
	}
	if _, ok := sums["1300"]; ok {
		t.Fatalf("accounts without entries should be absent")
	}

	empty, err := repo.FetchSums(context.Background(), nil, w, Dimensions{})
	if err != nil || len(empty) != 0 || len(db.queries) != 1 {
		t.Fatalf("empty code list should not query, err=%v", err)
	}
}

func TestRepositoryFetchRows(t *testing.T) {
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	db := &stubDB{rows: [][]any{
		{int64(1), 0, int64(7), date, "1060", "Checking", "100.00", "deposit", int64(0), int64(0)},
		{int64(2), 0, int64(7), date, "4010", "Sales", "-100.00", "", int64(0), int64(0)},
	}}
	repo := NewRepositoryWithQuerier(db)
	rows, err := repo.FetchRows(context.Background(), date, date, RowFilter{})
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1].AccountName != "Sales" || !rows[1].Amount.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("unexpected rows %+v", rows)
	}
	types, ok := db.queries[0].args[4].([]int32)
	if !ok || types == nil || len(types) != 0 {
		t.Fatalf("type filter must be an empty non-nil array, got %#v", db.queries[0].args[4])
	}
}

func TestRepositoryPropagatesQueryErrors(t *testing.T) {
	boom := errors.New("boom")
	repo := NewRepositoryWithQuerier(&stubDB{err: boom})
	if _, err := repo.FetchAccounts(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected source error unchanged, got %v", err)
	}
}

func TestRepositoryNotInitialised(t *testing.T) {
	var repo *Repository
	if _, err := repo.FetchClasses(context.Background()); !errors.Is(err, ErrRepositoryNotInitialised) {
		t.Fatalf("expected ErrRepositoryNotInitialised got %v", err)
	}
}

func TestRepositorySnapshotWithoutPool(t *testing.T) {
	repo := NewRepositoryWithQuerier(&stubDB{})
	var got Backend
	err := repo.Snapshot(context.Background(), func(ctx context.Context, b Backend) error {
		got = b
		return nil
	})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got != Backend(repo) {
		t.Fatalf("expected snapshot to reuse the repository")
	}
}

func TestNormalizeAppliesSignOnce(t *testing.T) {
	raw := decimal.NewFromInt(-250)
	if got := Normalize(raw, ClassIncome, SignNatural); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("income should display positive, got %s", got)
	}
	if got := Normalize(raw, ClassIncome, SignRaw); !got.Equal(raw) {
		t.Fatalf("raw convention must not flip, got %s", got)
	}
	if got := Normalize(raw, ClassExpense, SignNatural); !got.Equal(raw) {
		t.Fatalf("expense keeps ledger sign, got %s", got)
	}
	if got := Denormalize(Normalize(raw, ClassLiability, SignNatural), ClassLiability, SignNatural); !got.Equal(raw) {
		t.Fatalf("denormalize should invert normalize, got %s", got)
	}
}

func TestClassKindFromCode(t *testing.T) {
	for code, want := range map[int]ClassKind{1: ClassAsset, 2: ClassLiability, 3: ClassEquity, 4: ClassIncome, 5: ClassExpense, 6: ClassExpense} {
		got, err := ClassKindFromCode(code)
		if err != nil || got != want {
			t.Fatalf("ClassKindFromCode(%d) = %s, %v", code, got, err)
		}
	}
	if _, err := ClassKindFromCode(0); !errors.Is(err, ErrUnknownClassKind) {
		t.Fatalf("expected ErrUnknownClassKind got %v", err)
	}
}

func TestClassKindCodeRoundTrips(t *testing.T) {
	for _, kind := range []ClassKind{ClassAsset, ClassLiability, ClassEquity, ClassIncome, ClassExpense} {
		got, err := ClassKindFromCode(kind.Code())
		if err != nil || got != kind {
			t.Fatalf("%s.Code() = %d does not round trip: %s, %v", kind, kind.Code(), got, err)
		}
	}
	if ClassKind("OTHER").Code() != 0 {
		t.Fatalf("unknown kinds have no code")
	}
}
