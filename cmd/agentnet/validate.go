package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentnet/internal/infra/catalog"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config and catalog without contacting any provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			path, err := catalog.ResolvePath(cfg.Catalog.Path, cfg.Catalog)
			if err != nil {
				return exitFor(err)
			}
			cat, err := catalog.NewLoader(opts.logger).Load(cmd.Context(), path)
			if err != nil {
				return exitFor(err)
			}
			tools := 0
			for _, record := range cat.Records {
				tools += len(record.Tools)
			}
			if opts.jsonOutput {
				return writeJSON(map[string]any{"catalog": path, "servers": cat.Len(), "tools": tools})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d servers, %d tools\n", headerColor("ok"), path, cat.Len(), tools)
			return nil
		},
	}
}
