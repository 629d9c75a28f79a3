// Package project materializes uploaded site payloads into buildable
// project directories keyed by fingerprint, including the synthesized
// build recipe (Dockerfile and .dockerignore).
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gleb-Shall/full-project/internal/domain"
)

const manifestName = "package.json"

var (
	// ErrMissingManifest indicates the payload lacks a package.json at the
	// project root, so the build recipe could never succeed.
	ErrMissingManifest = errors.New("project: package.json is required")
	// ErrUnsafePath indicates a file name that would escape the project
	// directory or otherwise cannot be written.
	ErrUnsafePath = errors.New("project: unsafe file path")
)

// Manager owns fingerprint-keyed project directories under a common root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// New ensures the project root exists and is a directory.
func New(root string, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("project root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("project root %s exists but is not a directory", abs)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create project root: %w", err)
	}
	return &Manager{root: abs, logger: logger}, nil
}

// Dir returns the project directory path for a fingerprint.
func (m *Manager) Dir(fingerprint string) string {
	return filepath.Join(m.root, fingerprint)
}

// Exists reports whether a materialized project directory is already
// present for the fingerprint. Identical fingerprints materialize to
// identical bytes, so callers may treat a present directory as a cache.
func (m *Manager) Exists(fingerprint string) bool {
	info, err := os.Stat(m.Dir(fingerprint))
	return err == nil && info.IsDir()
}

// Materialize writes the payload files and the build recipe into the
// project directory for the fingerprint. A directory already present for
// the same fingerprint is reused and re-filled in place; it is never
// deleted, even on failure. A freshly created directory is removed when
// materialization fails partway.
func (m *Manager) Materialize(fingerprint, ownerID string, files []domain.File) (string, bool, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return "", false, fmt.Errorf("project: fingerprint cannot be empty")
	}

	dir := m.Dir(fingerprint)
	entries, err := planEntries(dir, files)
	if err != nil {
		return "", false, err
	}

	created, err := m.ensureDir(dir)
	if err != nil {
		return "", false, err
	}
	m.logger.Debug("materializing project", "fingerprint", fingerprint, "owner_id", ownerID, "dir", dir, "files", len(entries), "created", created)

	if err := writeEntries(dir, entries); err != nil {
		if created {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				m.logger.Warn("cleanup of failed project dir failed", "dir", dir, "error", rmErr)
			}
		}
		return "", false, err
	}
	return dir, created, nil
}

type fileEntry struct {
	rel     string
	content string
}

// planEntries validates the payload before anything touches disk: the
// manifest must be present, and every name must stay inside dir.
func planEntries(dir string, files []domain.File) ([]fileEntry, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: empty file set", ErrMissingManifest)
	}
	hasManifest := false
	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty file name", ErrUnsafePath)
		}
		name = strings.TrimLeft(name, "/")
		if name == "" || strings.Contains(name, "..") {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
		rel := filepath.FromSlash(name)
		target := filepath.Join(dir, rel)
		if escaped, err := filepath.Rel(dir, target); err != nil || escaped == "." || strings.HasPrefix(escaped, "..") {
			return nil, fmt.Errorf("%w: %q resolves outside the project directory", ErrUnsafePath, f.Name)
		}
		if name == manifestName {
			hasManifest = true
		}
		content, err := f.RenderContent()
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		entries = append(entries, fileEntry{rel: rel, content: content})
	}
	if !hasManifest {
		return nil, ErrMissingManifest
	}
	return entries, nil
}

// ensureDir creates the project directory when absent and reports whether
// it was freshly created. A stray regular file squatting on the path is
// replaced with a directory.
func (m *Manager) ensureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		return false, nil
	}
	if err == nil {
		if rmErr := os.Remove(dir); rmErr != nil {
			return false, fmt.Errorf("replace stray file at %s: %w", dir, rmErr)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create project dir %s: %w", dir, err)
	}
	return true, nil
}

func writeEntries(dir string, entries []fileEntry) error {
	for _, e := range entries {
		path := filepath.Join(dir, e.rel)
		if parent := filepath.Dir(path); parent != dir {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return fmt.Errorf("create directory for %s: %w", e.rel, err)
			}
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return fmt.Errorf("%w: %q collides with an existing directory", ErrUnsafePath, e.rel)
		}
		if err := os.WriteFile(path, []byte(e.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	recipe := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(recipe, []byte(renderDockerfile()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", recipe, err)
	}
	ignore := filepath.Join(dir, ".dockerignore")
	if err := os.WriteFile(ignore, []byte(renderDockerignore()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ignore, err)
	}
	return nil
}
