package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentnet/internal/domain"
)

// ResolvePath picks the catalog file to use. An explicit path must exist;
// otherwise the configured candidates are probed in order.
func ResolvePath(explicit string, cfg domain.CatalogConfig) (string, error) {
	if path := strings.TrimSpace(explicit); path != "" {
		return requireExisting(normalize(path, cfg.BaseDir))
	}
	if path := strings.TrimSpace(cfg.Path); path != "" {
		return requireExisting(normalize(path, cfg.BaseDir))
	}

	searched := make([]string, 0, len(cfg.Candidates))
	for _, candidate := range cfg.Candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		path := normalize(candidate, cfg.BaseDir)
		searched = append(searched, path)
		if fileExists(path) {
			return path, nil
		}
	}
	return "", domain.E(domain.CodeCatalogNotFound, "catalog.ResolvePath",
		fmt.Sprintf("no catalog JSON found; searched: %s", strings.Join(searched, ", ")), nil)
}

func requireExisting(path string) (string, error) {
	if fileExists(path) {
		return path, nil
	}
	return "", domain.E(domain.CodeCatalogNotFound, "catalog.ResolvePath",
		fmt.Sprintf("catalog path not found: %s", path), nil)
}

func normalize(path, baseDir string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
