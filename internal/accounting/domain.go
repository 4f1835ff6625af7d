package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
)

// ClassKind enumerates the top-level nature of an account class.
type ClassKind string

const (
	ClassAsset     ClassKind = "ASSET"
	ClassLiability ClassKind = "LIABILITY"
	ClassEquity    ClassKind = "EQUITY"
	ClassIncome    ClassKind = "INCOME"
	ClassExpense   ClassKind = "EXPENSE"
)

// ClassKindFromCode maps the ledger's numeric class type.
// 5 (cost of sales) and 6 (expenses) both report as ClassExpense.
func ClassKindFromCode(code int) (ClassKind, error) {
	switch code {
	case 1:
		return ClassAsset, nil
	case 2:
		return ClassLiability, nil
	case 3:
		return ClassEquity, nil
	case 4:
		return ClassIncome, nil
	case 5, 6:
		return ClassExpense, nil
	}
	return "", ErrUnknownClassKind
}

// Code is the numeric class type written back to the ledger; expenses use 6.
func (k ClassKind) Code() int {
	switch k {
	case ClassAsset:
		return 1
	case ClassLiability:
		return 2
	case ClassEquity:
		return 3
	case ClassIncome:
		return 4
	case ClassExpense:
		return 6
	}
	return 0
}

// SignFactor is -1 for credit-natured classes and +1 otherwise.
func (k ClassKind) SignFactor() decimal.Decimal {
	switch k {
	case ClassLiability, ClassEquity, ClassIncome:
		return decimal.NewFromInt(-1)
	default:
		return decimal.NewFromInt(1)
	}
}

// BalanceSheet reports whether the class is carried forward across years.
func (k ClassKind) BalanceSheet() bool {
	return k == ClassAsset || k == ClassLiability || k == ClassEquity
}

// SignConvention selects how raw ledger amounts are displayed.
type SignConvention string

const (
	// SignNatural shows credit-natured classes as positive figures.
	SignNatural SignConvention = "natural"
	// SignRaw keeps ledger signs, positive = debit.
	SignRaw SignConvention = "raw"
)

// Normalize converts a raw ledger amount into its display amount.
// It must be applied exactly once, at account level.
func Normalize(raw decimal.Decimal, kind ClassKind, sign SignConvention) decimal.Decimal {
	if sign == SignRaw {
		return raw
	}
	return raw.Mul(kind.SignFactor())
}

// Denormalize reverses Normalize.
func Denormalize(display decimal.Decimal, kind ClassKind, sign SignConvention) decimal.Decimal {
	// SignFactor is its own inverse.
	return Normalize(display, kind, sign)
}

// Account is a leaf of the chart of accounts.
type Account struct {
	Code   string
	Name   string
	TypeID int64
}

// AccountType groups accounts and nests to arbitrary depth.
type AccountType struct {
	ID       int64
	Name     string
	ClassID  int64
	ParentID *int64
}

// AccountClass is a root of the chart of accounts.
type AccountClass struct {
	ID   int64
	Name string
	Kind ClassKind
}

// Dimensions filters ledger entries by analytical dimension; zero means any.
type Dimensions struct {
	Dimension1 int64
	Dimension2 int64
}

// LedgerRow is one posted general-ledger line. Positive amounts are debits.
type LedgerRow struct {
	Counter     int64
	Type        int
	SequenceNo  int64
	Date        time.Time
	AccountCode string
	AccountName string
	Amount      decimal.Decimal
	Memo        string
	Dimension1  int64
	Dimension2  int64
}

// RowFilter narrows FetchRows beyond the date range.
type RowFilter struct {
	Dimensions
	Types       []int
	AccountCode string
}

// LedgerSource answers balance and row queries against the general ledger.
type LedgerSource interface {
	FetchSum(ctx context.Context, accountCode string, w periods.Window, dims Dimensions) (decimal.Decimal, error)
	FetchRows(ctx context.Context, from, to time.Time, filter RowFilter) ([]LedgerRow, error)
}

// BatchLedgerSource is implemented by sources that can sum many accounts in
// one round trip. Missing codes in the result are zero.
type BatchLedgerSource interface {
	FetchSums(ctx context.Context, codes []string, w periods.Window, dims Dimensions) (map[string]decimal.Decimal, error)
}

// Catalog exposes the chart-of-accounts hierarchy.
type Catalog interface {
	FetchClasses(ctx context.Context) ([]AccountClass, error)
	FetchTypes(ctx context.Context, classID int64, parentTypeID *int64) ([]AccountType, error)
	FetchAccounts(ctx context.Context, typeID int64) ([]Account, error)
}

// Backend is a catalog that is also a ledger source.
type Backend interface {
	Catalog
	LedgerSource
}

// Snapshotter runs fn against a backend pinned to a consistent read view.
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(context.Context, Backend) error) error
}

var (
	// ErrUnknownClassKind indicates a class type code outside 1..6.
	ErrUnknownClassKind = errors.New("accounting: unknown class type")
	// ErrRepositoryNotInitialised indicates a nil pool or repository.
	ErrRepositoryNotInitialised = errors.New("accounting: repository not initialised")
)
