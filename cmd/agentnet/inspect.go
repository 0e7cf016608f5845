package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"agentnet/internal/domain"
	"agentnet/internal/infra/catalog"
	"agentnet/internal/infra/index"
	"agentnet/internal/infra/telemetry"
)

func newInspectCmd(opts *cliOptions) *cobra.Command {
	var metrics bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the effective config and whether the index is current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metrics {
				return dumpMetrics()
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			report := map[string]any{"config": cfg}
			path, err := catalog.ResolvePath(cfg.Catalog.Path, cfg.Catalog)
			if err != nil {
				report["catalogError"] = err.Error()
				return printInspect(cmd, report, opts.jsonOutput)
			}
			status, err := indexStatus(cfg, path, opts)
			if err != nil {
				return exitFor(err)
			}
			report["index"] = status
			return printInspect(cmd, report, opts.jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print a snapshot of the registered metric families")
	return cmd
}

// indexStatus reads the stamp without opening the vector store.
func indexStatus(cfg domain.Config, catalogPath string, opts *cliOptions) (index.Status, error) {
	manager, err := index.NewManager(index.Options{
		Config: cfg.Index,
		Open: func(context.Context) (domain.VectorStore, error) {
			return nil, errors.New("inspect does not open the index")
		},
		Logger: opts.logger,
	})
	if err != nil {
		return index.Status{}, err
	}
	return manager.Status(catalogPath)
}

func printInspect(cmd *cobra.Command, report map[string]any, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(report)
	}
	out := cmd.OutOrStdout()
	cfg := report["config"].(domain.Config)
	fmt.Fprintf(out, "%s %s (%s)\n", headerColor("index dir:"), cfg.Index.PersistDir, cfg.Index.Collection)
	fmt.Fprintf(out, "%s %s k=%d top=%d\n", headerColor("ranking:"), cfg.Ranking.Mode, cfg.Ranking.KChunks, cfg.Ranking.TopServers)
	fmt.Fprintf(out, "%s %s\n", headerColor("embedding:"), cfg.Embedding.Model)
	fmt.Fprintf(out, "%s %s/%s\n", headerColor("llm:"), cfg.LLM.Provider, cfg.LLM.Model)
	if msg, ok := report["catalogError"]; ok {
		fmt.Fprintf(out, "%s %s\n", headerColor("catalog:"), msg)
		return nil
	}
	status := report["index"].(index.Status)
	fmt.Fprintf(out, "%s %s\n", headerColor("catalog:"), status.CatalogPath)
	state := "stale"
	if status.Current {
		state = "current"
	}
	fmt.Fprintf(out, "%s %s (%s %s)\n", headerColor("stamp:"), state, status.Mode, status.StampPath)
	return nil
}

func dumpMetrics() error {
	registry := prometheus.NewRegistry()
	telemetry.NewPrometheusMetrics(registry)
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, family); err != nil {
			return err
		}
	}
	return nil
}
