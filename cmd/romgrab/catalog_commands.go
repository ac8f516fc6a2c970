package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"romgrab/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				entry, err := svc.Entry(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				printEntry(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func newRandomCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a random catalog entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				entry, err := svc.Random(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				printEntry(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show catalog status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				info, err := svc.Info(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, info)
				}
				keys := make([]string, 0, len(info))
				for k := range info {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				out := cmd.OutOrStdout()
				for _, k := range keys {
					fmt.Fprintf(out, "%s: %v\n", k, info[k])
				}
				return nil
			})
		},
	}
}

func newPlatformsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List platform codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				platforms, err := svc.Platforms(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, platforms)
				}
				rows := make([][]string, 0, len(platforms))
				for _, p := range platforms {
					rows = append(rows, []string{p.Code, p.Name, orDash(p.Brand)})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Code", "Name", "Brand"}, rows, nil))
				return nil
			})
		},
	}
}

func newRegionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List region codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				regions, err := svc.Regions(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, regions)
				}
				rows := make([][]string, 0, len(regions))
				for _, r := range regions {
					rows = append(rows, []string{r.Code, r.Name})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Code", "Name"}, rows, nil))
				return nil
			})
		},
	}
}
