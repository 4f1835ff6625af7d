package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/ledger"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

func windows2024() []periods.Window {
	return []periods.Window{
		{Name: periods.WindowBroughtForward, Kind: periods.KindBroughtForward, To: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Name: periods.WindowCurrent, Kind: periods.KindPeriod, From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
}

func walk(t *testing.T, book *ledger.Book, opts Options) (*Node, *ledger.Aggregator) {
	t.Helper()
	agg := ledger.NewAggregator(book)
	root, err := NewWalker(book, agg, nil).Walk(context.Background(), opts)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return root, agg
}

func fingerprint(n *Node, windows []string) string {
	var b strings.Builder
	n.Visit(func(node *Node, depth int) {
		fmt.Fprintf(&b, "%d %s", depth, node.ID)
		for _, w := range windows {
			fmt.Fprintf(&b, " %s", node.Amount(w).String())
		}
		b.WriteString("\n")
	})
	return b.String()
}

func TestWalkParentEqualsSumOfChildren(t *testing.T) {
	root, _ := walk(t, ledger.Demo(), Options{Windows: windows2024()})
	names := periods.Names(windows2024())
	root.Visit(func(node *Node, _ int) {
		if len(node.Children) == 0 {
			return
		}
		for _, w := range names {
			sum := decimal.Zero
			for _, c := range node.Children {
				sum = sum.Add(c.Amount(w))
			}
			if !sum.Equal(node.Amount(w)) {
				t.Fatalf("node %s window %s: %s != sum of children %s", node.ID, w, node.Amount(w), sum)
			}
		}
	})
}

func TestWalkAppliesSignOnceAtAccounts(t *testing.T) {
	root, _ := walk(t, ledger.Demo(), Options{Windows: windows2024()})
	sales := root.Find("account:4010")
	if sales == nil {
		t.Fatalf("sales account missing")
	}
	if !sales.Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("income should be positive under natural sign, got %s", sales.Amount(periods.WindowCurrent))
	}
	income := root.Find("class:4")
	if !income.Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("class total must not re-apply the sign, got %s", income.Amount(periods.WindowCurrent))
	}

	raw, _ := walk(t, ledger.Demo(), Options{Windows: windows2024(), Sign: accounting.SignRaw})
	if !raw.Find("class:4").Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(-5000)) {
		t.Fatalf("raw sign should keep ledger credit")
	}
	if !raw.Amount(periods.WindowCurrent).IsZero() {
		t.Fatalf("a balanced ledger sums to zero in raw sign, got %s", raw.Amount(periods.WindowCurrent))
	}
}

func TestWalkParallelMatchesSequential(t *testing.T) {
	names := periods.Names(windows2024())
	seq, _ := walk(t, ledger.Demo(), Options{Windows: windows2024()})
	for _, p := range []int{2, 4, 8} {
		par, _ := walk(t, ledger.Demo(), Options{Windows: windows2024(), Parallelism: p})
		if fingerprint(seq, names) != fingerprint(par, names) {
			t.Fatalf("parallelism %d changed the tree:\n%s\nvs\n%s", p, fingerprint(seq, names), fingerprint(par, names))
		}
	}
}

func TestWalkBatchesPerTypeAndWindow(t *testing.T) {
	_, agg := walk(t, ledger.Demo(), Options{Windows: windows2024()})
	// demo chart: 9 types with accounts, 2 windows
	if agg.Queries() != 18 {
		t.Fatalf("expected 18 batched queries got %d", agg.Queries())
	}
}

func TestWalkFiltersClassesAndDimensions(t *testing.T) {
	root, _ := walk(t, ledger.Demo(), Options{
		Windows:    windows2024(),
		Classes:    []accounting.ClassKind{accounting.ClassIncome, accounting.ClassExpense},
		Dimensions: accounting.Dimensions{Dimension1: 1},
	})
	if len(root.Children) != 3 {
		t.Fatalf("expected income, cost of sales and expense classes, got %d", len(root.Children))
	}
	if !root.Find("class:6").Amount(periods.WindowCurrent).IsZero() {
		t.Fatalf("expenses carry no dimension 1 entries")
	}
	if !root.Find("class:5").Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("unexpected cost of sales on dimension 1")
	}
}

func TestWalkDetectsCycles(t *testing.T) {
	top := int64(10)
	child := int64(11)
	book := ledger.NewBook().
		AddClass(accounting.AccountClass{ID: 1, Name: "Assets", Kind: accounting.ClassAsset}).
		AddType(accounting.AccountType{ID: 10, Name: "Current", ClassID: 1}).
		AddType(accounting.AccountType{ID: 11, Name: "Bank", ClassID: 1, ParentID: &top}).
		AddType(accounting.AccountType{ID: 10, Name: "Current again", ClassID: 1, ParentID: &child})

	for _, p := range []int{0, 2} {
		_, err := NewWalker(book, ledger.NewAggregator(book), nil).Walk(context.Background(), Options{Windows: windows2024(), Parallelism: p})
		if !errors.Is(err, shared.ErrCyclicHierarchy) {
			t.Fatalf("parallelism %d: expected ErrCyclicHierarchy got %v", p, err)
		}
	}
}

func TestWalkRequiresWindows(t *testing.T) {
	book := ledger.Demo()
	if _, err := NewWalker(book, ledger.NewAggregator(book), nil).Walk(context.Background(), Options{}); !errors.Is(err, shared.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange got %v", err)
	}
}

func trialBook() *ledger.Book {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return ledger.NewBook().
		AddClass(accounting.AccountClass{ID: 1, Name: "Assets", Kind: accounting.ClassAsset}).
		AddType(accounting.AccountType{ID: 1, Name: "Current", ClassID: 1}).
		AddAccount(accounting.Account{Code: "A", Name: "A", TypeID: 1}).
		AddAccount(accounting.Account{Code: "B", Name: "B", TypeID: 1}).
		AddAccount(accounting.Account{Code: "C", Name: "C", TypeID: 1}).
		Post(
			accounting.LedgerRow{Type: 0, SequenceNo: 1, Date: date, AccountCode: "A", Amount: decimal.NewFromInt(100)},
			accounting.LedgerRow{Type: 0, SequenceNo: 1, Date: date, AccountCode: "B", Amount: decimal.NewFromInt(-40)},
		)
}

func TestPruneHidesImmaterialAccounts(t *testing.T) {
	root, _ := walk(t, trialBook(), Options{Windows: windows2024()[1:]})
	if !root.Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected total 60 got %s", root.Amount(periods.WindowCurrent))
	}
	pruned := root.Prune()
	if got := len(pruned.Accounts()); got != 2 {
		t.Fatalf("expected 2 visible accounts got %d", got)
	}
	if pruned.Find("account:C") != nil {
		t.Fatalf("zero account C should be hidden")
	}
	if root.Find("account:C") == nil {
		t.Fatalf("pruning must not modify the original tree")
	}
	if !pruned.Amount(periods.WindowCurrent).Equal(root.Amount(periods.WindowCurrent)) {
		t.Fatalf("pruning must not change totals")
	}
}

func TestPruneIsIdempotent(t *testing.T) {
	names := periods.Names(windows2024())
	root, _ := walk(t, ledger.Demo(), Options{Windows: windows2024()})
	once := root.Prune()
	twice := once.Prune()
	if fingerprint(once, names) != fingerprint(twice, names) {
		t.Fatalf("prune is not idempotent")
	}
}

func TestPruneDropsZeroSumSubtree(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	book := ledger.NewBook().
		AddClass(accounting.AccountClass{ID: 1, Name: "Assets", Kind: accounting.ClassAsset}).
		AddType(accounting.AccountType{ID: 10, Name: "Clearing", ClassID: 1}).
		AddType(accounting.AccountType{ID: 20, Name: "Bank", ClassID: 1}).
		AddAccount(accounting.Account{Code: "A", Name: "A", TypeID: 10}).
		AddAccount(accounting.Account{Code: "B", Name: "B", TypeID: 10}).
		AddAccount(accounting.Account{Code: "K", Name: "K", TypeID: 20}).
		Post(
			accounting.LedgerRow{Type: 0, SequenceNo: 1, Date: date, AccountCode: "A", Amount: decimal.NewFromInt(100)},
			accounting.LedgerRow{Type: 0, SequenceNo: 1, Date: date, AccountCode: "B", Amount: decimal.NewFromInt(-100)},
			accounting.LedgerRow{Type: 0, SequenceNo: 2, Date: date, AccountCode: "K", Amount: decimal.NewFromInt(25)},
		)
	root, _ := walk(t, book, Options{Windows: windows2024()})

	clearing := root.Find("type:10")
	if clearing == nil || clearing.Material {
		t.Fatalf("offsetting accounts should leave type 10 immaterial, got %+v", clearing)
	}
	if a := root.Find("account:A"); a == nil || !a.Material {
		t.Fatalf("account A is material on its own")
	}

	pruned := root.Prune()
	for _, id := range []string{"type:10", "account:A", "account:B"} {
		if pruned.Find(id) != nil {
			t.Fatalf("%s belongs to a zero-sum subtree and should be pruned", id)
		}
	}
	if pruned.Find("account:K") == nil {
		t.Fatalf("material sibling subtree should stay visible")
	}
	if got := len(pruned.Accounts()); got != 1 {
		t.Fatalf("expected 1 visible account got %d", got)
	}
	if !pruned.Amount(periods.WindowCurrent).Equal(decimal.NewFromInt(25)) {
		t.Fatalf("pruning must not change totals, got %s", pruned.Amount(periods.WindowCurrent))
	}
}

func TestPruneKeepsImmaterialRoot(t *testing.T) {
	root := newNode("root", "Total", KindRoot, "", []string{"current"})
	child := newNode("class:1", "Assets", KindClass, accounting.ClassAsset, []string{"current"})
	child.markMaterial(DefaultMateriality)
	root.add(child)
	root.markMaterial(DefaultMateriality)

	pruned := root.Prune()
	if pruned == nil || pruned.ID != "root" || len(pruned.Children) != 0 {
		t.Fatalf("expected a bare root, got %+v", pruned)
	}
}
