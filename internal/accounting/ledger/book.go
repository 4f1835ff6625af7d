package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

// BudgetEntry is a planned amount for an account on a date.
type BudgetEntry struct {
	Date        time.Time
	AccountCode string
	Amount      decimal.Decimal
	Dimension1  int64
	Dimension2  int64
}

// Book is an in-memory chart of accounts and general ledger.
type Book struct {
	mu       sync.RWMutex
	classes  []accounting.AccountClass
	types    []accounting.AccountType
	accounts map[string]accounting.Account
	entries  []accounting.LedgerRow
	budget   []BudgetEntry
	counter  int64
}

var (
	_ accounting.Backend           = (*Book)(nil)
	_ accounting.BatchLedgerSource = (*Book)(nil)
)

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{accounts: make(map[string]accounting.Account)}
}

// AddClass registers an account class.
func (b *Book) AddClass(c accounting.AccountClass) *Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.classes = append(b.classes, c)
	return b
}

// AddType registers an account type.
func (b *Book) AddType(t accounting.AccountType) *Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, t)
	return b
}

// AddAccount registers an account.
func (b *Book) AddAccount(a accounting.Account) *Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[a.Code] = a
	return b
}

// Contents is a copy of everything registered in a book.
type Contents struct {
	Classes  []accounting.AccountClass
	Types    []accounting.AccountType
	Accounts []accounting.Account
	Entries  []accounting.LedgerRow
	Budget   []BudgetEntry
}

// Contents returns a copy of the book with accounts in code order.
func (b *Book) Contents() Contents {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := Contents{
		Classes: slices.Clone(b.classes),
		Types:   slices.Clone(b.types),
		Entries: slices.Clone(b.entries),
		Budget:  slices.Clone(b.budget),
	}
	for _, a := range b.accounts {
		out.Accounts = append(out.Accounts, a)
	}
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].Code < out.Accounts[j].Code })
	return out
}

// Post appends ledger rows, assigning counters to rows that have none.
func (b *Book) Post(rows ...accounting.LedgerRow) *Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		if row.Counter == 0 {
			b.counter++
			row.Counter = b.counter
		} else if row.Counter > b.counter {
			b.counter = row.Counter
		}
		row.Date = periods.Day(row.Date)
		b.entries = append(b.entries, row)
	}
	return b
}

// Plan appends budget entries.
func (b *Book) Plan(entries ...BudgetEntry) *Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		e.Date = periods.Day(e.Date)
		b.budget = append(b.budget, e)
	}
	return b
}

// FetchClasses lists classes in id order.
func (b *Book) FetchClasses(ctx context.Context) ([]accounting.AccountClass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := slices.Clone(b.classes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchTypes lists the types of a class directly below parentTypeID.
func (b *Book) FetchTypes(ctx context.Context, classID int64, parentTypeID *int64) ([]accounting.AccountType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []accounting.AccountType
	for _, t := range b.types {
		if t.ClassID != classID {
			continue
		}
		switch {
		case parentTypeID == nil && t.ParentID == nil:
		case parentTypeID != nil && t.ParentID != nil && *parentTypeID == *t.ParentID:
		default:
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchAccounts lists the accounts of a type in code order.
func (b *Book) FetchAccounts(ctx context.Context, typeID int64) ([]accounting.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []accounting.Account
	for _, a := range b.accounts {
		if a.TypeID == typeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// FetchSum totals one account over a window.
func (b *Book) FetchSum(ctx context.Context, code string, w periods.Window, dims accounting.Dimensions) (decimal.Decimal, error) {
	sums, err := b.FetchSums(ctx, []string{code}, w, dims)
	if err != nil {
		return decimal.Zero, err
	}
	return sums[code], nil
}

// FetchSums totals many accounts over a window; codes without entries are absent.
func (b *Book) FetchSums(ctx context.Context, codes []string, w periods.Window, dims accounting.Dimensions) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	sums := make(map[string]decimal.Decimal)
	add := func(code string, date time.Time, amount decimal.Decimal, d1, d2 int64) {
		if _, ok := wanted[code]; !ok || !w.Contains(date) || !matches(dims, d1, d2) {
			return
		}
		sums[code] = sums[code].Add(amount)
	}
	if w.Budget() {
		for _, e := range b.budget {
			add(e.AccountCode, e.Date, e.Amount, e.Dimension1, e.Dimension2)
		}
		return sums, nil
	}
	for _, e := range b.entries {
		add(e.AccountCode, e.Date, e.Amount, e.Dimension1, e.Dimension2)
	}
	return sums, nil
}

// FetchRows lists non-zero rows dated within [from, to] ordered by date,
// type, sequence number and counter.
func (b *Book) FetchRows(ctx context.Context, from, to time.Time, filter accounting.RowFilter) ([]accounting.LedgerRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: rows %s before %s", shared.ErrInvalidRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	w := periods.Window{Kind: periods.KindPeriod, From: from, To: to}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []accounting.LedgerRow
	for _, e := range b.entries {
		if e.Amount.IsZero() || !w.Contains(e.Date) || !matches(filter.Dimensions, e.Dimension1, e.Dimension2) {
			continue
		}
		if filter.AccountCode != "" && e.AccountCode != filter.AccountCode {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		if e.AccountName == "" {
			e.AccountName = b.accounts[e.AccountCode].Name
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if !x.Date.Equal(y.Date) {
			return x.Date.Before(y.Date)
		}
		if x.Type != y.Type {
			return x.Type < y.Type
		}
		if x.SequenceNo != y.SequenceNo {
			return x.SequenceNo < y.SequenceNo
		}
		return x.Counter < y.Counter
	})
	return out, nil
}

func matches(dims accounting.Dimensions, d1, d2 int64) bool {
	if dims.Dimension1 != 0 && dims.Dimension1 != d1 {
		return false
	}
	return dims.Dimension2 == 0 || dims.Dimension2 == d2
}
