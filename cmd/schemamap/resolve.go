package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"schemamap/internal/pipeline"
	"schemamap/internal/table"
)

var (
	resolveFormat        string
	resolveConfirmations string
	resolveExport        string
	resolveOutput        string
)

func init() {
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "text", "Output format: text, json")
	resolveCmd.Flags().StringVar(&resolveConfirmations, "confirmations", "", "reviewed suggestion file to apply as user confirmations")
	resolveCmd.Flags().StringVar(&resolveExport, "export", "", "write a reviewable suggestion file to this path")
	resolveCmd.Flags().StringVar(&resolveOutput, "output", "", "write the renamed table as CSV to this path")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file.csv>",
	Short: "Map the headers of a CSV file and report analytic readiness",
	Long: `Resolve reads a CSV file, maps every header to a canonical column and prints
the mapping together with the analytics the renamed table supports.

Examples:
  schemamap resolve sales.csv
  schemamap resolve sales.csv --format json
  schemamap resolve sales.csv --export review.yaml
  schemamap resolve sales.csv --confirmations review.yaml --output clean.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		tbl, err := readTable(args[0])
		if err != nil {
			return err
		}

		var confirmed pipeline.Confirmations
		if resolveConfirmations != "" {
			if confirmed, err = pipeline.LoadConfirmations(resolveConfirmations); err != nil {
				return err
			}
		}

		p, closeFn, err := pipeline.Build(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := p.Run(ctx, tbl, confirmed)
		if err != nil {
			return err
		}

		if resolveExport != "" {
			if err := writeSuggestions(report, resolveExport); err != nil {
				return err
			}
		}

		if resolveOutput != "" {
			if err := writeTable(report.Table, resolveOutput); err != nil {
				return err
			}
		}

		switch strings.ToLower(resolveFormat) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(report)
		case "text", "":
			return printReport(cmd.OutOrStdout(), report)
		default:
			return fmt.Errorf("unknown format %q", resolveFormat)
		}
	},
}

func readTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	tbl, err := table.ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	return tbl, nil
}

func writeTable(tbl *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}

	if err := tbl.WriteCSV(f); err != nil {
		_ = f.Close()

		return eris.Wrapf(err, "write %s", path)
	}

	return f.Close()
}

func writeSuggestions(report *pipeline.Report, path string) error {
	data, err := pipeline.ExportSuggestionsYAML(report)
	if err != nil {
		return eris.Wrap(err, "encode suggestions")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}

	return nil
}

func printReport(w io.Writer, r *pipeline.Report) error {
	fmt.Fprintf(w, "Run %s (domain %s, %s)\n\n", r.RunID, r.Domain, r.Duration)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HEADER\tCOLUMN\tTYPE\tSOURCE\tCONFIDENCE\tEFFECTIVE")

	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
			e.Raw, e.Name, e.Type, e.Source, e.Confidence, e.Effective)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nVerification: %s", r.Status)
	if len(r.Missing) > 0 {
		fmt.Fprintf(w, " (missing %s)", strings.Join(r.Missing, "; "))
	}

	fmt.Fprintln(w)

	if r.Escalated > 0 {
		s := r.Escalation
		fmt.Fprintf(w, "Escalated %d headers: %d calls, %d retries, %d parse errors, success rate %.0f%%\n",
			r.Escalated, s.Calls, s.Retries, s.ParseErrors, s.SuccessRate*100)
	}

	fmt.Fprintln(w, "\nAnalytics:")

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, rec := range r.Analytics {
		mark := "no"
		if rec.CanPerform {
			mark = "yes"
		}

		fmt.Fprintf(tw, "  %s\t%s\t%s\n", rec.Analytic, mark, rec.Reason)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	diags := r.Diagnostics
	if len(diags.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")

		for _, d := range diags.Warnings {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}

	return nil
}
