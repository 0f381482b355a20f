package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
)

// Manifest maps blob file names to their pinned SHA-256 hex digests.
// The on-disk format is the sha256sum output format: one
// "<hex>  <filename>" line per blob, # comments allowed.
type Manifest map[string]string

// LoadManifest reads a checksum manifest.
func LoadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m := make(Manifest)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[0]) != sha256.Size*2 {
			return nil, fmt.Errorf("malformed manifest line: %q", line)
		}
		m[fields[1]] = strings.ToLower(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// VerifyFile checks an externally-sourced blob against the manifest
// before it is applied. A blob missing from the manifest fails unless
// allowUnpinned is set, which is for development only and logged loudly.
func (m Manifest) VerifyFile(path string, allowUnpinned bool) error {
	name := filepath.Base(path)
	expected, pinned := m[name]
	if !pinned {
		if allowUnpinned {
			logger.Warn("INTEGRITY", fmt.Sprintf("Loading unpinned blob %s (allow-unpinned-data is set)", name))
			return nil
		}
		return errs.Integrity(name, "", "").
			With("reason", "not_pinned").
			With("hint", "add the blob to the manifest or set allow-unpinned-data for development")
	}

	actual, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hash %s: %w", name, err)
	}
	if actual != expected {
		return errs.Integrity(name, expected, actual)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
