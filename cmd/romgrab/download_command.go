package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"romgrab/internal/api"
	"romgrab/internal/search"
)

type downloadFlags struct {
	search      string
	searchFlags searchFlags
	dest        string
	force       bool
	noBoxart    bool
	withBoxart  bool
	noProgress  bool
}

func (f *downloadFlags) request(cmd *cobra.Command) api.DownloadRequest {
	req := api.DownloadRequest{
		Platform:    f.searchFlags.platform,
		Region:      f.searchFlags.region,
		Destination: f.dest,
		Force:       f.force,
	}
	switch {
	case cmd.Flags().Changed("no-boxart"):
		req.Boxart = api.BoolPtr(!f.noBoxart)
	case cmd.Flags().Changed("boxart"):
		req.Boxart = api.BoolPtr(f.withBoxart)
	}
	return req
}

// prepareSession runs the optional search so index references resolve.
func (f *downloadFlags) prepareSession(c context.Context, cmd *cobra.Command, ctx *commandContext, svc *api.Service) (*search.Session, error) {
	sess := svc.NewSession()
	query := strings.TrimSpace(f.search)
	if query == "" {
		return sess, nil
	}
	resp, err := svc.Search(c, sess, f.searchFlags.request(query))
	if err != nil {
		return nil, err
	}
	if !ctx.jsonOutput() {
		printSearch(cmd.OutOrStdout(), resp)
	}
	return sess, nil
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags downloadFlags

	cmd := &cobra.Command{
		Use:   "download [ref...]",
		Short: "Download ROMs by result index, catalog id, or slug",
		Long: `Download one or more catalog entries.

References are resolved as a catalog id, then a slug, then an index into the
search run by --search. Use "#N" to force an index, "id:X" or "slug:X" to
force the other kinds. With --search and no references the top result is
downloaded.`,
		Example: `  romgrab download --search "super mario 64" --platform n64
  romgrab download --search zelda "#2" "#3"
  romgrab download slug:super-mario-world --dest ~/Games`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := args
			if len(refs) == 0 {
				if strings.TrimSpace(flags.search) == "" {
					return fmt.Errorf("give at least one reference or --search")
				}
				refs = []string{"#1"}
			}
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				sess, err := flags.prepareSession(c, cmd, ctx, svc)
				if err != nil {
					return err
				}
				req := flags.request(cmd)
				var reporter *progressReporter
				if !ctx.jsonOutput() && !flags.noProgress && isTerminal(cmd.ErrOrStderr()) {
					reporter = newProgressReporter(cmd.ErrOrStderr())
					req.Progress = reporter.update
				}

				if len(refs) == 1 {
					req.Ref = refs[0]
					task, err := svc.Download(c, sess, req)
					if reporter != nil {
						reporter.finish()
					}
					if ctx.jsonOutput() && task != nil {
						if jerr := writeJSON(cmd, task); jerr != nil {
							return jerr
						}
					} else {
						printTask(cmd.OutOrStdout(), task)
					}
					return err
				}

				items, err := svc.DownloadBatch(c, sess, refs, req)
				if reporter != nil {
					reporter.finish()
				}
				if err != nil {
					return err
				}
				return reportBatch(cmd, ctx, items)
			})
		},
	}

	cmd.Flags().StringVarP(&flags.search, "search", "s", "", "Run this search first so #N references resolve")
	flags.searchFlags.register(cmd)
	cmd.Flags().StringVarP(&flags.dest, "dest", "d", "", "Override the ROM directory")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Download again even if a verified copy exists")
	cmd.Flags().BoolVar(&flags.noBoxart, "no-boxart", false, "Skip the boxart download")
	cmd.Flags().BoolVar(&flags.withBoxart, "boxart", false, "Also download boxart")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Hide progress bars")
	return cmd
}

func reportBatch(cmd *cobra.Command, ctx *commandContext, items []api.BatchItem) error {
	failed := 0
	for _, item := range items {
		if item.ErrorKind != "" {
			failed++
		}
	}
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, items); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, item := range items {
			if item.Task != nil {
				printTask(out, item.Task)
				continue
			}
			fmt.Fprintf(out, "✗ %s: %s\n", item.Ref, item.ErrorMessage)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(items))
	}
	return nil
}

func newBoxartCommand(ctx *commandContext) *cobra.Command {
	var flags downloadFlags

	cmd := &cobra.Command{
		Use:   "boxart <ref>",
		Short: "Download only the boxart for an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *api.Service) error {
				sess, err := flags.prepareSession(c, cmd, ctx, svc)
				if err != nil {
					return err
				}
				req := flags.request(cmd)
				req.Ref = args[0]
				task, err := svc.DownloadBoxart(c, sess, req)
				if ctx.jsonOutput() && task != nil {
					if jerr := writeJSON(cmd, task); jerr != nil {
						return jerr
					}
				} else {
					printTask(cmd.OutOrStdout(), task)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&flags.search, "search", "s", "", "Run this search first so #N references resolve")
	flags.searchFlags.register(cmd)
	cmd.Flags().StringVarP(&flags.dest, "dest", "d", "", "Override the ROM directory")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Download again even if present")
	return cmd
}
