package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
)

const csvBufferSize = 32 * 1024

// Options controls number rendering. A zero Options writes plain machine
// readable numbers; a Language writes grouped, locale formatted amounts.
type Options struct {
	Language language.Tag
}

type writer struct {
	buf     *bufio.Writer
	csv     *csv.Writer
	printer *message.Printer
}

func newWriter(w io.Writer, opts Options) *writer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	out := &writer{buf: buf, csv: csv.NewWriter(buf)}
	if opts.Language != language.Und {
		out.printer = message.NewPrinter(opts.Language)
	}
	return out
}

func (w *writer) comment(line string) error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	_, err := w.buf.WriteString("# " + strings.TrimSpace(line) + "\n")
	return err
}

func (w *writer) row(fields ...string) error {
	return w.csv.Write(fields)
}

func (w *writer) amount(v float64) string {
	if w.printer != nil {
		return w.printer.Sprintf("%.2f", v)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (w *writer) percent(v *float64) string {
	if v == nil {
		return ""
	}
	return w.amount(*v)
}

func (w *writer) close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// WriteCSV renders a report result in the shape of its layout.
func WriteCSV(out io.Writer, result reports.Result, opts Options) error {
	w := newWriter(out, opts)
	if err := w.comment("Report: " + result.Title); err != nil {
		return err
	}
	if err := w.comment(fmt.Sprintf("Period: %s to %s | Run: %s", result.From, result.To, result.RunID)); err != nil {
		return err
	}
	var err error
	switch {
	case result.Tree != nil:
		err = writeTree(w, result)
	case result.Transactions != nil:
		err = writeTransactions(w, result.Transactions)
	case result.Aging != nil:
		err = writeAging(w, result.Aging)
	default:
		err = fmt.Errorf("export: result %q has no body", result.Report)
	}
	if err != nil {
		return err
	}
	return w.close()
}

func writeTree(w *writer, result reports.Result) error {
	names := make([]string, len(result.Windows))
	for i, win := range result.Windows {
		names[i] = win.Name
	}
	root := result.Tree
	achieved := root.AchievedPercent != nil
	variance := root.VariancePercent != nil

	header := []string{"Level", "Kind", "Code", "Label"}
	header = append(header, names...)
	if achieved {
		header = append(header, "Achieved %")
	}
	if variance {
		header = append(header, "Variance %")
	}
	if err := w.row(header...); err != nil {
		return err
	}

	var walk func(n reports.TreeNode, depth int) error
	walk = func(n reports.TreeNode, depth int) error {
		fields := []string{strconv.Itoa(depth), n.Kind, n.Code, n.Label}
		for _, name := range names {
			fields = append(fields, w.amount(n.Amounts[name]))
		}
		if achieved {
			fields = append(fields, w.percent(n.AchievedPercent))
		}
		if variance {
			fields = append(fields, w.percent(n.VariancePercent))
		}
		if err := w.row(fields...); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(*root, 0); err != nil {
		return err
	}

	s := result.Summary
	if s == nil {
		return nil
	}
	if s.Result != nil {
		fields := []string{"", "summary", "", "Result"}
		for _, name := range names {
			fields = append(fields, w.amount(s.Result[name]))
		}
		if err := w.row(fields...); err != nil {
			return err
		}
	}
	if s.MarginPercent != nil {
		if err := w.comment("Margin %: " + w.percent(s.MarginPercent)); err != nil {
			return err
		}
	}
	return w.comment(fmt.Sprintf("Accounts: %d | Balanced: %t", s.AccountCount, s.IsBalanced))
}

func writeTransactions(w *writer, tx *reports.TransactionsView) error {
	if err := w.row("Type", "Sequence", "Date", "Account", "Account Name", "Debit", "Credit", "Memo", "Balanced"); err != nil {
		return err
	}
	for _, item := range tx.Items {
		for _, line := range item.Lines {
			if err := w.row(
				strconv.Itoa(item.Type),
				strconv.FormatInt(item.SequenceNo, 10),
				item.Date,
				line.Account,
				line.AccountName,
				w.amount(line.Debit),
				w.amount(line.Credit),
				line.Memo,
				strconv.FormatBool(item.IsBalanced),
			); err != nil {
				return err
			}
		}
	}
	if err := w.row("", "", "", "", "Total", w.amount(tx.TotalDebit), w.amount(tx.TotalCredit), "", strconv.FormatBool(tx.IsBalanced)); err != nil {
		return err
	}
	return w.comment(fmt.Sprintf("Transactions: %d | Unbalanced: %d", tx.TransactionCount, tx.UnbalancedCount))
}

func writeAging(w *writer, aging *reports.AgingView) error {
	if err := w.comment(fmt.Sprintf("Account: %s | As of: %s", aging.Account, aging.AsOf)); err != nil {
		return err
	}
	if err := w.row("Bucket", "Amount", "Count"); err != nil {
		return err
	}
	for _, b := range aging.Buckets {
		if err := w.row(b.Label, w.amount(b.Amount), strconv.Itoa(b.Count)); err != nil {
			return err
		}
	}
	return w.row("Total", w.amount(aging.Total), "")
}
