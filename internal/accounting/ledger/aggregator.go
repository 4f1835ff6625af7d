package ledger

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
)

// Aggregator totals ledger entries per account and window, counting every
// query it sends to the underlying source.
type Aggregator struct {
	source  accounting.LedgerSource
	queries atomic.Int64
}

// NewAggregator wraps a ledger source.
func NewAggregator(source accounting.LedgerSource) *Aggregator {
	return &Aggregator{source: source}
}

// Sum returns the raw ledger total of one account over a window.
func (a *Aggregator) Sum(ctx context.Context, code string, w periods.Window, dims accounting.Dimensions) (decimal.Decimal, error) {
	a.queries.Add(1)
	return a.source.FetchSum(ctx, code, w, dims)
}

// SumAccounts returns raw totals for every code. Codes without entries map
// to zero. A batching source answers in one query.
func (a *Aggregator) SumAccounts(ctx context.Context, codes []string, w periods.Window, dims accounting.Dimensions) (map[string]decimal.Decimal, error) {
	sums := make(map[string]decimal.Decimal, len(codes))
	if len(codes) == 0 {
		return sums, nil
	}
	if batch, ok := a.source.(accounting.BatchLedgerSource); ok {
		a.queries.Add(1)
		fetched, err := batch.FetchSums(ctx, codes, w, dims)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			sums[code] = fetched[code]
		}
		return sums, nil
	}
	for _, code := range codes {
		amount, err := a.Sum(ctx, code, w, dims)
		if err != nil {
			return nil, err
		}
		sums[code] = amount
	}
	return sums, nil
}

// Rows passes a row query through to the source.
func (a *Aggregator) Rows(ctx context.Context, w periods.Window, filter accounting.RowFilter) ([]accounting.LedgerRow, error) {
	a.queries.Add(1)
	return a.source.FetchRows(ctx, w.From, w.To, filter)
}

// Queries reports how many source queries have been issued.
func (a *Aggregator) Queries() int64 {
	return a.queries.Load()
}
