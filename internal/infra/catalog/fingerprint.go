package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"agentnet/internal/domain"
)

// Fingerprint summarizes the catalog file so index staleness can be detected
// without comparing contents.
func Fingerprint(path string, mode domain.FingerprintMode) (string, error) {
	switch mode {
	case domain.FingerprintSize:
		info, err := os.Stat(path)
		if err != nil {
			return "", fingerprintErr(path, err)
		}
		return "size:" + strconv.FormatInt(info.Size(), 10), nil
	case domain.FingerprintContentHash, "":
		f, err := os.Open(path)
		if err != nil {
			return "", fingerprintErr(path, err)
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash catalog: %w", err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("unsupported fingerprint mode %q", mode)
	}
}

func fingerprintErr(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return domain.E(domain.CodeCatalogNotFound, "catalog.Fingerprint", fmt.Sprintf("catalog not found: %s", path), err)
	}
	return fmt.Errorf("fingerprint catalog: %w", err)
}
