package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"romgrab/internal/preflight"
)

type statusLine struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories and remote services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				lines := make([]statusLine, 0, len(results))
				for _, r := range results {
					lines = append(lines, statusLine{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				if err := writeJSON(cmd, lines); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, r := range results {
					mark := "✓"
					if !r.Passed {
						mark = "✗"
					}
					fmt.Fprintf(out, "%s %s: %s\n", mark, r.Name, r.Detail)
				}
			}
			if !preflight.Passed(results) {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}
