package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/ledger"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

// DefaultMateriality is the smallest absolute amount shown on a report.
var DefaultMateriality = decimal.RequireFromString("0.01")

// Options controls a single walk.
type Options struct {
	Windows    []periods.Window
	Dimensions accounting.Dimensions
	// Classes restricts the walk to the given class kinds; empty walks all.
	Classes     []accounting.ClassKind
	Sign        accounting.SignConvention
	Materiality decimal.Decimal
	// Parallelism > 1 walks up to that many classes concurrently.
	Parallelism int
}

// Walker builds a report tree from a catalog and a ledger aggregator.
type Walker struct {
	catalog accounting.Catalog
	agg     *ledger.Aggregator
	logger  *slog.Logger
}

// NewWalker constructs a Walker.
func NewWalker(catalog accounting.Catalog, agg *ledger.Aggregator, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{catalog: catalog, agg: agg, logger: logger}
}

// Walk aggregates every account of the selected classes over every window.
// Signs are applied once per account; parents hold plain sums of their children.
func (w *Walker) Walk(ctx context.Context, opts Options) (*Node, error) {
	if len(opts.Windows) == 0 {
		return nil, fmt.Errorf("%w: no windows", shared.ErrInvalidRange)
	}
	if opts.Materiality.IsZero() || opts.Materiality.IsNegative() {
		opts.Materiality = DefaultMateriality
	}
	if opts.Sign == "" {
		opts.Sign = accounting.SignNatural
	}
	names := periods.Names(opts.Windows)

	classes, err := w.catalog.FetchClasses(ctx)
	if err != nil {
		return nil, err
	}
	if len(opts.Classes) > 0 {
		classes = slices.DeleteFunc(classes, func(c accounting.AccountClass) bool {
			return !slices.Contains(opts.Classes, c.Kind)
		})
	}

	branches := make([]*Node, len(classes))
	if opts.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallelism)
		for i, class := range classes {
			i, class := i, class
			g.Go(func() error {
				node, err := w.walkClass(gctx, class, names, opts)
				if err != nil {
					return err
				}
				branches[i] = node
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, class := range classes {
			node, err := w.walkClass(ctx, class, names, opts)
			if err != nil {
				return nil, err
			}
			branches[i] = node
		}
	}

	root := newNode("root", "Total", KindRoot, "", names)
	for _, branch := range branches {
		root.add(branch)
	}
	root.markMaterial(opts.Materiality)

	w.logger.Debug("hierarchy walked",
		slog.Int("classes", len(classes)),
		slog.Int("windows", len(names)),
		slog.Int64("queries", w.agg.Queries()),
	)
	return root, nil
}

func (w *Walker) walkClass(ctx context.Context, class accounting.AccountClass, names []string, opts Options) (*Node, error) {
	node := newNode("class:"+strconv.FormatInt(class.ID, 10), class.Name, KindClass, class.Kind, names)
	types, err := w.catalog.FetchTypes(ctx, class.ID, nil)
	if err != nil {
		return nil, err
	}
	visited := make(map[int64]struct{})
	for _, t := range types {
		child, err := w.walkType(ctx, class, t, visited, names, opts)
		if err != nil {
			return nil, err
		}
		node.add(child)
	}
	node.markMaterial(opts.Materiality)
	return node, nil
}

func (w *Walker) walkType(ctx context.Context, class accounting.AccountClass, t accounting.AccountType, visited map[int64]struct{}, names []string, opts Options) (*Node, error) {
	if _, seen := visited[t.ID]; seen {
		return nil, fmt.Errorf("%w: type %d in class %d", shared.ErrCyclicHierarchy, t.ID, class.ID)
	}
	visited[t.ID] = struct{}{}

	node := newNode("type:"+strconv.FormatInt(t.ID, 10), t.Name, KindType, class.Kind, names)

	accounts, err := w.catalog.FetchAccounts(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		codes := make([]string, len(accounts))
		leaves := make([]*Node, len(accounts))
		for i, a := range accounts {
			codes[i] = a.Code
			leaves[i] = newNode("account:"+a.Code, a.Name, KindAccount, class.Kind, names)
			leaves[i].Code = a.Code
		}
		for _, win := range opts.Windows {
			sums, err := w.agg.SumAccounts(ctx, codes, win, opts.Dimensions)
			if err != nil {
				return nil, err
			}
			for i, code := range codes {
				leaves[i].Amounts[win.Name] = accounting.Normalize(sums[code], class.Kind, opts.Sign)
			}
		}
		for _, leaf := range leaves {
			leaf.markMaterial(opts.Materiality)
			node.add(leaf)
		}
	}

	children, err := w.catalog.FetchTypes(ctx, class.ID, &t.ID)
	if err != nil {
		return nil, err
	}
	for _, ct := range children {
		child, err := w.walkType(ctx, class, ct, visited, names, opts)
		if err != nil {
			return nil, err
		}
		node.add(child)
	}
	node.markMaterial(opts.Materiality)
	return node, nil
}
