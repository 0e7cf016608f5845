package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newIndexCmd(opts *cliOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or reuse the persisted catalog index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, cleanup, err := opts.initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var bar *progressbar.ProgressBar
			if !opts.jsonOutput {
				application.Embedder.SetProgress(func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions64(int64(total),
							progressbar.OptionSetDescription("embedding chunks"),
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionShowCount(),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(done)
				})
			}

			handle, err := application.Reindex(ctx, opts.catalogPath, force)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return exitFor(err)
			}

			if opts.jsonOutput {
				return writeJSON(map[string]any{
					"catalog":     handle.CatalogPath,
					"fingerprint": handle.Fingerprint,
					"rebuilt":     handle.Rebuilt,
					"reason":      handle.Reason,
					"chunks":      handle.Chunks,
				})
			}
			state := "reused"
			if handle.Rebuilt {
				state = fmt.Sprintf("rebuilt (%s)", handle.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headerColor("catalog:"), handle.CatalogPath)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s, %d chunks\n", headerColor("index:"), state, handle.Chunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even when the catalog is unchanged")
	return cmd
}
