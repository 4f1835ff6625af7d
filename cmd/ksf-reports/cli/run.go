package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports/export"
)

type runOptions struct {
	ledgerFlags
	from            string
	to              string
	fiscalYearBegin string
	yearEnd         int
	yearEndMonth    int
	dimension1      int64
	dimension2      int64
	account         string
	types           []int
	format          string
	lang            string
}

func newRunCommand(g *globals) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:       "run <report>",
		Short:     "Run a preset report and print it as JSON or CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: reports.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout(), g, args[0])
		},
	}
	opts.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.from, "from", "", "first day of the period (YYYY-MM-DD)")
	flags.StringVar(&opts.to, "to", "", "last day of the period (YYYY-MM-DD)")
	flags.StringVar(&opts.fiscalYearBegin, "fiscal-year-begin", "", "start of the accumulated window (YYYY-MM-DD)")
	flags.IntVar(&opts.yearEnd, "year-end", 0, "final year of a rolling twelve month report")
	flags.IntVar(&opts.yearEndMonth, "year-end-month", 0, "final month of a rolling twelve month report")
	flags.Int64Var(&opts.dimension1, "dimension1", 0, "restrict to analytical dimension 1")
	flags.Int64Var(&opts.dimension2, "dimension2", 0, "restrict to analytical dimension 2")
	flags.StringVar(&opts.account, "account", "", "account code for aged balances and journals")
	flags.IntSliceVar(&opts.types, "types", nil, "transaction types for journals")
	flags.StringVar(&opts.format, "format", "json", "output format: json or csv")
	flags.StringVar(&opts.lang, "lang", "", "BCP 47 tag for localized CSV amounts")
	return cmd
}

func (o *runOptions) request() (reports.Request, error) {
	from, err := parseDate("from", o.from)
	if err != nil {
		return reports.Request{}, err
	}
	to, err := parseDate("to", o.to)
	if err != nil {
		return reports.Request{}, err
	}
	begin, err := parseDate("fiscal-year-begin", o.fiscalYearBegin)
	if err != nil {
		return reports.Request{}, err
	}
	if o.yearEndMonth < 0 || o.yearEndMonth > 12 {
		return reports.Request{}, fmt.Errorf("--year-end-month: %d out of range", o.yearEndMonth)
	}
	if o.dimension1 < 0 || o.dimension2 < 0 {
		return reports.Request{}, fmt.Errorf("dimensions must not be negative")
	}
	return reports.Request{
		From:            from,
		To:              to,
		FiscalYearBegin: begin,
		YearEnd:         o.yearEnd,
		YearEndMonth:    time.Month(o.yearEndMonth),
		Dimensions:      accounting.Dimensions{Dimension1: o.dimension1, Dimension2: o.dimension2},
		AccountCode:     o.account,
		Types:           o.types,
	}, nil
}

func (o *runOptions) exportOptions() (export.Options, error) {
	switch o.format {
	case "json", "csv":
	default:
		return export.Options{}, fmt.Errorf("--format: unsupported %q", o.format)
	}
	if o.lang == "" {
		return export.Options{}, nil
	}
	tag, err := language.Parse(o.lang)
	if err != nil {
		return export.Options{}, fmt.Errorf("--lang: %w", err)
	}
	return export.Options{Language: tag}, nil
}

func (o *runOptions) run(ctx context.Context, out io.Writer, g *globals, name string) error {
	req, err := o.request()
	if err != nil {
		return err
	}
	exportOpts, err := o.exportOptions()
	if err != nil {
		return err
	}
	svc, err := o.open(ctx, g)
	if err != nil {
		return err
	}
	defer svc.Close(g.logger)

	result, err := svc.Reports.Run(ctx, name, req)
	if err != nil {
		return err
	}
	if o.format == "csv" {
		return export.WriteCSV(out, result, exportOpts)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the preset reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLAYOUT\tTITLE")
			for _, cfg := range reports.Presets() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cfg.Name, cfg.Layout, cfg.Title)
			}
			return tw.Flush()
		},
	}
}
