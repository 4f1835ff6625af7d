package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest debit/credit difference still considered balanced.
var Tolerance = decimal.RequireFromString("0.01")

// Line is one account posting of a transaction, split into debit and credit.
type Line struct {
	Counter     int64
	AccountCode string
	AccountName string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// Transaction is the set of ledger lines sharing a (type, sequence number) key.
type Transaction struct {
	Type        int
	SequenceNo  int64
	Date        time.Time
	Lines       []Line
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// Difference is debit minus credit.
func (t Transaction) Difference() decimal.Decimal {
	return t.TotalDebit.Sub(t.TotalCredit)
}

// Journal is an ordered list of transactions with grand totals. Balanced
// holds when the grand totals agree within Tolerance.
type Journal struct {
	Transactions     []Transaction
	TotalDebit       decimal.Decimal
	TotalCredit      decimal.Decimal
	TransactionCount int
	UnbalancedCount  int
	Balanced         bool
}

// Unbalanced returns the transactions failing the balance check.
func (j Journal) Unbalanced() []Transaction {
	var out []Transaction
	for _, tx := range j.Transactions {
		if !tx.Balanced {
			out = append(out, tx)
		}
	}
	return out
}

func isBalanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(Tolerance)
}
