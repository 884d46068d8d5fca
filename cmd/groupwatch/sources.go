package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"groupwatch/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show each configured source with its detected header and column mapping",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if len(cfg.Sources) == 0 {
			_, _ = fmt.Fprintln(out, "no sources configured")
			return nil
		}

		for _, sc := range cfg.Sources {
			_, _ = fmt.Fprintf(out, "%s (%s)\n", sc.Name, sc.Path)

			src, err := source.New(sc)
			if err != nil {
				_, _ = fmt.Fprintf(out, "  unavailable: %v\n", err)
				continue
			}
			rows, err := src.Open(ctx)
			if err != nil {
				_, _ = fmt.Fprintf(out, "  unavailable: %v\n", err)
				continue
			}
			header := rows.Header()
			_ = rows.Close()

			_, _ = fmt.Fprintf(out, "  header: %s\n", strings.Join(header, " | "))
			resolved := src.Mapping().Resolve(header)
			for _, f := range source.Fields() {
				cols := resolved.Columns(f)
				if len(cols) == 0 {
					_, _ = fmt.Fprintf(out, "  %-16s -\n", f)
					continue
				}
				_, _ = fmt.Fprintf(out, "  %-16s %s\n", f, strings.Join(cols, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
