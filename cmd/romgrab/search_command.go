package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"romgrab/internal/api"
)

type searchFlags struct {
	platform string
	region   string
	page     int
	pageSize int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.platform, "platform", "p", "", "Only match this platform code")
	cmd.Flags().StringVarP(&f.region, "region", "r", "", "Only match this region code")
	cmd.Flags().IntVar(&f.page, "page", 1, "Result page")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Results per page (default from config, max 100)")
}

func (f *searchFlags) request(query string) api.SearchRequest {
	return api.SearchRequest{
		Query:    query,
		Platform: f.platform,
		Region:   f.region,
		Page:     f.page,
		PageSize: f.pageSize,
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the catalog and rank results by relevance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				resp, err := svc.Search(c, svc.NewSession(), flags.request(query))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				printSearch(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}
