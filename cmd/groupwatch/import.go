package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"groupwatch/internal"
	"groupwatch/internal/pipeline"
	"groupwatch/internal/storage"
)

var (
	importDryRun bool
	importReport string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Ingest the configured sources into the group store",
	Long:  "Reads every configured source in order, builds canonical groups and inserts the ones the store does not hold yet. Existing groups are never modified.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		store, err := storage.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer func() { _ = store.Close() }()

		runner, err := pipeline.NewRunnerFromConfig(cfg, store)
		if err != nil {
			return eris.Wrap(err, "build runner")
		}

		res, err := runner.Run(ctx, pipeline.Options{DryRun: importDryRun})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		if importReport != "" {
			if err := pipeline.ExportReportToXLSX(res.Report, res.Groups, importReport); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", importReport))
		}

		formatImportSummary(cmd.OutOrStdout(), res.Report, importDryRun)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "plan without writing to the store")
	importCmd.Flags().StringVar(&importReport, "report", "", "write the audit report to this xlsx path")
	rootCmd.AddCommand(importCmd)
}

// formatImportSummary writes the per-source table and plan totals to out.
func formatImportSummary(out io.Writer, report internal.AuditReport, dryRun bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tAVAILABLE\tROWS\tEXPLICIT\tDERIVED\tSYNTHETIC\tSKIPPED\tMERGED\tERROR")
	for _, s := range append(append([]internal.SourceAudit{}, report.Sources...), report.Totals) {
		_, _ = fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Source, s.Available, s.RowsRead, s.Explicit, s.Derived, s.Synthetic, s.Skipped, s.Merged, truncate(s.Error, 60))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\ntrace %s: plan insert=%d skip=%d", report.TraceID, report.PlanInsert, report.PlanSkip)
	switch {
	case dryRun:
		_, _ = fmt.Fprint(out, " (dry run)\n")
	case report.Apply != nil:
		_, _ = fmt.Fprintf(out, ", applied inserted=%d skipped=%d failed=%d\n",
			report.Apply.Inserted, report.Apply.Skipped, len(report.Apply.Failures))
		for _, f := range report.Apply.Failures {
			_, _ = fmt.Fprintf(out, "  write failed %s: %s\n", f.ID, truncate(f.Err, 80))
		}
	default:
		_, _ = fmt.Fprintln(out)
	}

	keys := make([]string, 0, len(report.ByRisk))
	for k := range report.ByRisk {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "  risk %s: %d\n", k, report.ByRisk[k])
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
