package main

import (
	"strings"

	"github.com/spf13/cobra"

	"agentnet/internal/app"
	"agentnet/internal/domain"
)

type searchFlags struct {
	kChunks    int
	topServers int
	reindex    bool
	direct     bool
	mode       string
}

func (f *searchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.kChunks, "k", 0, "chunks to retrieve (default from config)")
	cmd.Flags().IntVar(&f.topServers, "top", 0, "servers to return (default from config)")
	cmd.Flags().BoolVar(&f.reindex, "reindex", false, "force an index rebuild first")
	cmd.Flags().BoolVar(&f.direct, "direct", false, "append the direct-answer option")
	cmd.Flags().StringVar(&f.mode, "mode", "", "ranking mode: reciprocal_rank or first_hit")
}

func (f *searchFlags) request(cmd *cobra.Command, query, catalogPath string) app.SearchRequest {
	req := app.SearchRequest{
		Query:        query,
		CatalogPath:  catalogPath,
		KChunks:      f.kChunks,
		TopServers:   f.topServers,
		ForceReindex: f.reindex,
		Mode:         domain.RankingMode(f.mode),
	}
	if cmd.Flags().Changed("direct") {
		direct := f.direct
		req.DirectOption = &direct
	}
	return req
}

func newSearchCmd(opts *cliOptions) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the catalog's servers for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, cleanup, err := opts.initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			query := strings.Join(args, " ")
			resp, err := application.Search.Search(ctx, flags.request(cmd, query, opts.catalogPath))
			if err != nil {
				return exitFor(err)
			}
			return printSearchResponse(cmd.OutOrStdout(), query, resp, opts.jsonOutput)
		},
	}
	flags.bind(cmd)
	return cmd
}
