package journals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
)

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func row(counter int64, typ int, seq int64, day int, code, value string) accounting.LedgerRow {
	return accounting.LedgerRow{
		Counter:     counter,
		Type:        typ,
		SequenceNo:  seq,
		Date:        time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		AccountCode: code,
		Amount:      amount(value),
	}
}

func TestGroupDetectsUnbalancedTransaction(t *testing.T) {
	rows := []accounting.LedgerRow{
		row(1, 0, 1, 2, "1060", "100"),
		row(2, 0, 1, 2, "4010", "-100"),
		row(3, 0, 2, 3, "5010", "50"),
		row(4, 0, 2, 3, "1060", "-45"),
	}
	journal := Group(rows)
	if journal.TransactionCount != 2 {
		t.Fatalf("expected 2 transactions got %d", journal.TransactionCount)
	}
	if journal.UnbalancedCount != 1 || journal.Balanced {
		t.Fatalf("expected one unbalanced transaction, got %d (balanced=%v)", journal.UnbalancedCount, journal.Balanced)
	}
	bad := journal.Unbalanced()
	if len(bad) != 1 || bad[0].SequenceNo != 2 {
		t.Fatalf("unexpected unbalanced set %+v", bad)
	}
	if !bad[0].Difference().Equal(amount("5")) {
		t.Fatalf("expected difference 5.00 got %s", bad[0].Difference())
	}
	if !journal.TotalDebit.Equal(amount("150")) || !journal.TotalCredit.Equal(amount("145")) {
		t.Fatalf("unexpected totals %s/%s", journal.TotalDebit, journal.TotalCredit)
	}
}

func TestGroupOverallBalanceUsesGrandTotals(t *testing.T) {
	cases := []struct {
		name       string
		rows       []accounting.LedgerRow
		unbalanced int
		balanced   bool
	}{
		{
			name: "offsetting differences",
			rows: []accounting.LedgerRow{
				row(1, 10, 1, 1, "1200", "100"),
				row(2, 10, 1, 1, "4010", "-95"),
				row(3, 10, 2, 1, "1200", "95"),
				row(4, 10, 2, 1, "4010", "-100"),
			},
			unbalanced: 2,
			balanced:   true,
		},
		{
			name: "accumulated drift",
			rows: []accounting.LedgerRow{
				row(1, 10, 1, 1, "1200", "1.009"),
				row(2, 10, 1, 1, "4010", "-1"),
				row(3, 10, 2, 1, "1200", "1.009"),
				row(4, 10, 2, 1, "4010", "-1"),
			},
			unbalanced: 0,
			balanced:   false,
		},
		{
			name: "one short transaction",
			rows: []accounting.LedgerRow{
				row(1, 0, 1, 2, "1060", "100"),
				row(2, 0, 1, 2, "4010", "-100"),
				row(3, 0, 2, 3, "5010", "50"),
				row(4, 0, 2, 3, "1060", "-45"),
			},
			unbalanced: 1,
			balanced:   false,
		},
	}
	for _, tc := range cases {
		journal := Group(tc.rows)
		if journal.UnbalancedCount != tc.unbalanced {
			t.Fatalf("%s: expected %d unbalanced transactions got %d", tc.name, tc.unbalanced, journal.UnbalancedCount)
		}
		if journal.Balanced != tc.balanced {
			t.Fatalf("%s: expected balanced=%v got %v (debit %s credit %s)", tc.name, tc.balanced, journal.Balanced, journal.TotalDebit, journal.TotalCredit)
		}
	}
}

func TestGroupBalanceTolerance(t *testing.T) {
	cases := []struct {
		debit, credit string
		balanced      bool
	}{
		{"100", "-100", true},
		{"100", "-99.50", false},
		{"100", "-99.995", true},
		{"100", "-99.99", false},
	}
	for _, tc := range cases {
		journal := Group([]accounting.LedgerRow{
			row(1, 10, 5, 1, "1200", tc.debit),
			row(2, 10, 5, 1, "4010", tc.credit),
		})
		if got := journal.Transactions[0].Balanced; got != tc.balanced {
			t.Fatalf("debit %s credit %s: expected balanced=%v got %v", tc.debit, tc.credit, tc.balanced, got)
		}
	}
}

func TestGroupSortsInterleavedKeys(t *testing.T) {
	rows := []accounting.LedgerRow{
		row(1, 0, 1, 2, "1060", "20"),
		row(3, 0, 2, 2, "1060", "10"),
		row(2, 0, 1, 2, "4010", "-20"),
		row(4, 0, 2, 2, "4010", "-10"),
	}
	journal := Group(rows)
	if journal.TransactionCount != 2 || !journal.Balanced {
		t.Fatalf("expected two balanced transactions, got %+v", journal)
	}
	for _, tx := range journal.Transactions {
		if len(tx.Lines) != 2 {
			t.Fatalf("transaction %d has %d lines", tx.SequenceNo, len(tx.Lines))
		}
	}
	if journal.Transactions[0].Lines[1].Counter != 2 {
		t.Fatalf("lines should be ordered by counter within a transaction")
	}
	if rows[1].Counter != 3 {
		t.Fatalf("input rows must not be reordered in place")
	}
}

func TestGroupKeepsSourceOrderWhenContiguous(t *testing.T) {
	rows := []accounting.LedgerRow{
		row(9, 20, 4, 1, "2100", "-30"),
		row(8, 20, 4, 1, "5010", "30"),
		row(1, 0, 1, 3, "1060", "5"),
		row(2, 0, 1, 3, "4010", "-5"),
	}
	journal := Group(rows)
	if journal.Transactions[0].Type != 20 || journal.Transactions[0].Lines[0].Counter != 9 {
		t.Fatalf("contiguous input should keep its order, got %+v", journal.Transactions[0])
	}
	line := journal.Transactions[0].Lines[0]
	if !line.Credit.Equal(amount("30")) || !line.Debit.IsZero() {
		t.Fatalf("negative amounts should be credits, got %+v", line)
	}
}

func TestGroupEmpty(t *testing.T) {
	journal := Group(nil)
	if journal.TransactionCount != 0 || !journal.Balanced || !journal.TotalDebit.IsZero() {
		t.Fatalf("unexpected empty journal %+v", journal)
	}
}

type rowSource struct {
	rows   []accounting.LedgerRow
	err    error
	filter accounting.RowFilter
}

func (s *rowSource) FetchSum(context.Context, string, periods.Window, accounting.Dimensions) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *rowSource) FetchRows(_ context.Context, _, _ time.Time, filter accounting.RowFilter) ([]accounting.LedgerRow, error) {
	s.filter = filter
	return s.rows, s.err
}

func TestLoadPassesFilterAndErrors(t *testing.T) {
	src := &rowSource{rows: []accounting.LedgerRow{row(1, 0, 1, 1, "1060", "1"), row(2, 0, 1, 1, "4010", "-1")}}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	journal, err := Load(context.Background(), src, from, from, accounting.RowFilter{Types: []int{0}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if journal.TransactionCount != 1 || len(src.filter.Types) != 1 {
		t.Fatalf("unexpected load result %+v", journal)
	}

	boom := errors.New("boom")
	if _, err := Load(context.Background(), &rowSource{err: boom}, from, from, accounting.RowFilter{}); !errors.Is(err, boom) {
		t.Fatalf("expected source error got %v", err)
	}
}
