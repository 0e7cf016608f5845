package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"agentnet/internal/app"
	"agentnet/internal/domain"
	"agentnet/internal/infra/config"
	"agentnet/internal/infra/telemetry"
)

type cliOptions struct {
	configPath  string
	catalogPath string
	debug       bool
	jsonOutput  bool
	logger      *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "agentnet",
		Short:         "Find the MCP server for a task and run its tools",
		Version:       app.Version + " (" + app.Build + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			applyRootFlagBindings(cmd, &opts)
			logger, err := telemetry.NewLogger(opts.debug)
			if err != nil {
				return err
			}
			opts.logger = logger
			ctx, _ := telemetry.EnsureRequestMeta(cmd.Context(), "", cmd.Name())
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default ./"+config.DefaultConfigFile+" when present)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "catalog JSON path (overrides config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newIndexCmd(&opts),
		newSearchCmd(&opts),
		newRunCmd(&opts),
		newInspectCmd(&opts),
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newVersionCmd(&opts),
	)

	return root
}

func applyRootFlagBindings(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "catalog":
			opts.catalogPath, _ = flags.GetString("catalog")
		case "debug":
			opts.debug, _ = flags.GetBool("debug")
		case "json":
			opts.jsonOutput, _ = flags.GetBool("json")
		}
	})
}

func (o *cliOptions) loadConfig() (domain.Config, error) {
	cfg, err := config.NewLoader(o.logger).Load(o.configPath)
	if err != nil {
		return domain.Config{}, exitError{code: 2, message: err.Error()}
	}
	if o.catalogPath != "" {
		cfg.Catalog.Path = o.catalogPath
	}
	return cfg, nil
}

// initApp loads config and builds the application; callers must run cleanup.
func (o *cliOptions) initApp(ctx context.Context) (*app.Application, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return app.Initialize(ctx, cfg, o.logger)
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func newVersionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.jsonOutput {
				return writeJSON(map[string]string{"version": app.Version, "build": app.Build})
			}
			cmd.Printf("agentnet %s (%s)\n", app.Version, app.Build)
			return nil
		},
	}
}
