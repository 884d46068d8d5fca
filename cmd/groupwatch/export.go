package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"groupwatch/internal/pipeline"
	"groupwatch/internal/storage"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored group to xlsx",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := storage.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer func() { _ = store.Close() }()

		groups, err := store.ListGroups(ctx)
		if err != nil {
			return eris.Wrap(err, "list groups")
		}
		if len(groups) == 0 {
			return eris.New("no groups stored, run 'groupwatch import' first")
		}
		if err := pipeline.ExportGroupsToXLSX(groups, exportOut); err != nil {
			return err
		}

		if err := store.SetMetadata(ctx, storage.MetaLastExport, exportOut); err != nil {
			zap.L().Warn("record export failed", zap.Error(err))
		}

		lastRun, err := store.GetMetadata(ctx, storage.MetaLastRun)
		if err != nil {
			zap.L().Warn("read last run failed", zap.Error(err))
		} else if lastRun != nil {
			zap.L().Info("exported store state", zap.String("last_run_trace_id", *lastRun))
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d groups to %s\n", len(groups), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
