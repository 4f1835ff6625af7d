package journals

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
)

type txKey struct {
	typ int
	seq int64
}

// Group folds ledger rows into transactions keyed by (type, sequence number).
// Rows are grouped in a single pass; when a key reappears after another key
// the rows are first stable-sorted by type, sequence, date and counter.
// Journal.Balanced compares the grand totals, so per-transaction differences
// may offset each other or accumulate past the tolerance.
func Group(rows []accounting.LedgerRow) Journal {
	if !contiguous(rows) {
		rows = sortRows(rows)
	}

	journal := Journal{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	var current *Transaction
	flush := func() {
		if current == nil {
			return
		}
		current.Balanced = isBalanced(current.TotalDebit, current.TotalCredit)
		if !current.Balanced {
			journal.UnbalancedCount++
		}
		journal.TotalDebit = journal.TotalDebit.Add(current.TotalDebit)
		journal.TotalCredit = journal.TotalCredit.Add(current.TotalCredit)
		journal.Transactions = append(journal.Transactions, *current)
		current = nil
	}

	for _, row := range rows {
		if current == nil || current.Type != row.Type || current.SequenceNo != row.SequenceNo {
			flush()
			current = &Transaction{
				Type:        row.Type,
				SequenceNo:  row.SequenceNo,
				Date:        row.Date,
				TotalDebit:  decimal.Zero,
				TotalCredit: decimal.Zero,
			}
		}
		line := Line{
			Counter:     row.Counter,
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Debit:       decimal.Zero,
			Credit:      decimal.Zero,
			Memo:        row.Memo,
		}
		if row.Amount.IsPositive() {
			line.Debit = row.Amount
			current.TotalDebit = current.TotalDebit.Add(row.Amount)
		} else {
			line.Credit = row.Amount.Abs()
			current.TotalCredit = current.TotalCredit.Add(line.Credit)
		}
		current.Lines = append(current.Lines, line)
	}
	flush()

	journal.TransactionCount = len(journal.Transactions)
	journal.Balanced = isBalanced(journal.TotalDebit, journal.TotalCredit)
	return journal
}

// Load fetches the ledger rows in [from, to] and groups them.
func Load(ctx context.Context, source accounting.LedgerSource, from, to time.Time, filter accounting.RowFilter) (Journal, error) {
	rows, err := source.FetchRows(ctx, from, to, filter)
	if err != nil {
		return Journal{}, err
	}
	return Group(rows), nil
}

func contiguous(rows []accounting.LedgerRow) bool {
	seen := make(map[txKey]struct{})
	var last txKey
	for i, row := range rows {
		key := txKey{typ: row.Type, seq: row.SequenceNo}
		if i > 0 && key == last {
			continue
		}
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		last = key
	}
	return true
}

func sortRows(rows []accounting.LedgerRow) []accounting.LedgerRow {
	sorted := make([]accounting.LedgerRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.SequenceNo != b.SequenceNo {
			return a.SequenceNo < b.SequenceNo
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Counter < b.Counter
	})
	return sorted
}
