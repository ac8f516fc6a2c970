package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"romgrab/internal/api"
)

type historyFlags struct {
	failed  bool
	outcome string
	kind    string
	limit   int
}

func (f *historyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.failed, "failed", false, "Only failed or cancelled downloads")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "Only this outcome (success, failure, cancelled)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Only this task kind (rom, boxart)")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum rows (0 for all)")
}

func (f *historyFlags) query() api.HistoryQuery {
	return api.HistoryQuery{
		FailedOnly: f.failed,
		Outcome:    f.outcome,
		Kind:       f.kind,
		Limit:      f.limit,
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the download history",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryExportCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List downloads, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				records, err := svc.QueryHistory(c, flags.query())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, records)
				}
				printHistory(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "Maximum rows (0 for all)")
	cmd.Flags().BoolVar(&flags.failed, "failed", false, "Only failed or cancelled downloads")
	cmd.Flags().StringVar(&flags.outcome, "outcome", "", "Only this outcome (success, failure, cancelled)")
	cmd.Flags().StringVar(&flags.kind, "kind", "", "Only this task kind (rom, boxart)")
	return cmd
}

func newHistoryExportCommand(ctx *commandContext) *cobra.Command {
	var flags historyFlags
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the download history as csv, tsv, json, or yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				req := api.ExportRequest{
					Format: format,
					Path:   strings.TrimSpace(output),
					Writer: cmd.OutOrStdout(),
					Query:  flags.query(),
				}
				n, err := svc.ExportHistory(c, req)
				if err != nil {
					return err
				}
				if req.Path != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d record(s) to %s\n", n, req.Path)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "Export format: csv, tsv, json, yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
