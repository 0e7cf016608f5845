package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentnet/internal/infra/httpapi"
	"agentnet/internal/infra/telemetry"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search and execute HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, cleanup, err := opts.initApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = application.Config.HTTP.ListenAddress
			}
			if cmd.Flags().Changed("watch") {
				application.Config.Catalog.Watch = watch
			}

			watchErr := make(chan error, 1)
			if application.Config.Catalog.Watch {
				watcher, err := application.NewCatalogWatcher(opts.catalogPath)
				if err != nil {
					return exitFor(err)
				}
				go func() {
					if err := watcher.Run(ctx); err != nil {
						application.Logger.Error("catalog watcher stopped", zap.Error(err))
						watchErr <- err
						cancel()
					}
				}()
			}

			handler := httpapi.NewRouter(httpapi.Options{
				Search:   application.Search,
				Execute:  application.Orchestrator,
				Gatherer: application.Registry,
				Logger:   opts.logger,
			})
			if err := telemetry.RunHTTPServer(ctx, telemetry.HTTPServerOptions{Addr: addr, Handler: handler}, opts.logger); err != nil {
				return err
			}
			select {
			case err := <-watchErr:
				return err
			default:
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ensure the index when the catalog changes")
	return cmd
}
