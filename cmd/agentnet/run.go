package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentnet/internal/app"
	"agentnet/internal/domain"
)

type runFlags struct {
	search      searchFlags
	pick        int
	server      string
	childLink   string
	clarify     string
	baseURL     string
	dryRun      bool
	forceDirect bool
}

func newRunCmd(opts *cliOptions) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Search for a server and execute the task with its tools",
		Long: "Search ranks servers for the query, then the server at --pick (1-based) is used.\n" +
			"Pass --child-link to skip the search, or --answer-directly for a plain model answer.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, cleanup, err := opts.initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			query := strings.Join(args, " ")
			req := app.ExecuteRequest{
				Instruction:      query,
				Clarification:    flags.clarify,
				ServerName:       flags.server,
				ChildLink:        flags.childLink,
				EndpointOverride: flags.baseURL,
				DryRun:           flags.dryRun,
			}

			switch {
			case flags.forceDirect:
				req.Mode = domain.DirectMode
			case req.ChildLink == "" && req.EndpointOverride == "":
				choice, err := pickServer(ctx, cmd, application, query, opts, &flags)
				if err != nil {
					return err
				}
				req.ServerName = choice.Server
				req.ChildLink = choice.ChildLink
				req.Why = choice.Why
				req.Mode = choice.Mode
			}

			env, err := application.Orchestrator.Execute(ctx, req)
			if err != nil {
				return exitFor(err)
			}
			return printEnvelope(cmd.OutOrStdout(), env, opts.jsonOutput)
		},
	}
	flags.search.bind(cmd)
	cmd.Flags().IntVar(&flags.pick, "pick", 1, "1-based rank of the server to use")
	cmd.Flags().StringVar(&flags.server, "server", "", "server display name (with --child-link)")
	cmd.Flags().StringVar(&flags.childLink, "child-link", "", "catalog child link of the server to use")
	cmd.Flags().StringVar(&flags.clarify, "clarify", "", "clarified instruction that replaces the query")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "tool server endpoint override")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "plan arguments without calling the tool")
	cmd.Flags().BoolVar(&flags.forceDirect, "answer-directly", false, "answer with the language model only")
	return cmd
}

func pickServer(ctx context.Context, cmd *cobra.Command, application *app.Application, query string, opts *cliOptions, flags *runFlags) (domain.RankedServer, error) {
	resp, err := application.Search.Search(ctx, flags.search.request(cmd, query, opts.catalogPath))
	if err != nil {
		return domain.RankedServer{}, exitFor(err)
	}
	if len(resp.Results) == 0 {
		return domain.RankedServer{}, exitError{code: 4, message: "no servers matched the query"}
	}
	if flags.pick < 1 || flags.pick > len(resp.Results) {
		return domain.RankedServer{}, exitError{code: 2, message: fmt.Sprintf("--pick must be between 1 and %d", len(resp.Results))}
	}
	choice := resp.Results[flags.pick-1]
	if !opts.jsonOutput {
		label := choice.Server
		if choice.IsDirect() {
			label = "direct answer"
		}
		fmt.Fprintf(stderr(), "%s %s\n", headerColor("using:"), label)
	}
	return choice, nil
}
