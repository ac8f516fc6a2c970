package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"romgrab/internal/api"
	"romgrab/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	names := make([]string, 0, len(cache.Namespaces()))
	for _, ns := range cache.Namespaces() {
		names = append(names, string(ns))
	}

	return &cobra.Command{
		Use:       "clear [namespace]",
		Short:     "Remove cached catalog responses",
		Long:      "Remove cached records in one namespace, or all of them when no namespace is given.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: append(names, "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := ""
			if len(args) == 1 {
				namespace = args[0]
			}
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				resp, err := svc.ClearCache(c, namespace)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached record(s) from %s\n", resp.Removed, resp.Namespace)
				return nil
			})
		},
	}
}
