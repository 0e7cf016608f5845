package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"agentnet/internal/app"
	"agentnet/internal/domain"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	serverColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	dimColor    = color.New(color.Faint).SprintFunc()
	directColor = color.New(color.FgYellow).SprintFunc()
)

func writeJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printSearchResponse(w io.Writer, query string, resp app.SearchResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(map[string]any{
			"instruction": query,
			"catalog":     resp.CatalogPath,
			"rebuilt":     resp.Rebuilt,
			"reason":      resp.Reason,
			"results":     resp.Results,
		})
	}
	fmt.Fprintf(w, "%s %s\n", headerColor("catalog:"), resp.CatalogPath)
	if resp.Rebuilt {
		fmt.Fprintf(w, "%s rebuilt (%s)\n", headerColor("index:"), resp.Reason)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "no matching servers")
		return nil
	}
	for i, result := range resp.Results {
		if result.IsDirect() {
			fmt.Fprintf(w, "%2d. %s\n", i+1, directColor("answer directly without a tool server"))
			continue
		}
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, serverColor(result.Server), dimColor(fmt.Sprintf("score=%.3f %s", result.Score, result.ChildLink)))
		if why := strings.TrimSpace(result.Why); why != "" {
			fmt.Fprintf(w, "    %s\n", why)
		}
	}
	return nil
}

func printEnvelope(w io.Writer, env domain.AgentRunEnvelope, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(env)
	}
	if base := env.BaseURL(); base != "" {
		fmt.Fprintf(w, "%s %s\n", headerColor("server:"), base)
	}
	if report, ok := env.RawOutput.(app.RunReport); ok && report.Tool != "" {
		fmt.Fprintf(w, "%s %s\n", headerColor("tool:"), report.Tool)
	}
	fmt.Fprintln(w, env.FinalOutput)
	return nil
}

func stderr() io.Writer {
	return os.Stderr
}
