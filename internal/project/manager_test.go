package project

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gleb-Shall/full-project/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func validPayload() []domain.File {
	return []domain.File{
		{Name: "package.json", Content: map[string]any{"name": "site", "scripts": map[string]any{"build": "astro build"}}},
		{Name: "src/pages/index.astro", Content: "<h1>hello</h1>"},
	}
}

func TestMaterializeWritesFilesAndRecipe(t *testing.T) {
	m := newTestManager(t)

	dir, created, err := m.Materialize("abc123def456", "user-1", validPayload())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !created {
		t.Fatalf("expected a freshly created directory")
	}
	if dir != m.Dir("abc123def456") {
		t.Fatalf("unexpected dir %s", dir)
	}

	manifest, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if !strings.Contains(string(manifest), "\"build\": \"astro build\"") {
		t.Fatalf("structured content not rendered as indented JSON:\n%s", manifest)
	}

	page, err := os.ReadFile(filepath.Join(dir, "src", "pages", "index.astro"))
	if err != nil {
		t.Fatalf("read nested file: %v", err)
	}
	if string(page) != "<h1>hello</h1>" {
		t.Fatalf("unexpected page content %q", page)
	}

	recipe, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		t.Fatalf("read Dockerfile: %v", err)
	}
	for _, marker := range []string{
		"FROM node:20-alpine AS builder",
		"RUN npm install",
		"RUN npm run build",
		"RUN test -d dist",
		"FROM nginx:alpine",
		"EXPOSE 8000",
	} {
		if !strings.Contains(string(recipe), marker) {
			t.Fatalf("Dockerfile missing %q:\n%s", marker, recipe)
		}
	}

	ignore, err := os.ReadFile(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		t.Fatalf("read .dockerignore: %v", err)
	}
	if !strings.Contains(string(ignore), "node_modules") {
		t.Fatalf(".dockerignore missing node_modules:\n%s", ignore)
	}
}

func TestMaterializeMissingManifest(t *testing.T) {
	m := newTestManager(t)

	_, _, err := m.Materialize("feedfeedfeed", "user-1", []domain.File{
		{Name: "index.html", Content: "<h1>no manifest</h1>"},
	})
	if !errors.Is(err, ErrMissingManifest) {
		t.Fatalf("expected ErrMissingManifest, got %v", err)
	}
	if m.Exists("feedfeedfeed") {
		t.Fatalf("directory should not be left behind after validation failure")
	}
}

func TestMaterializeEmptyFileSet(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.Materialize("feedfeedfeed", "user-1", nil); !errors.Is(err, ErrMissingManifest) {
		t.Fatalf("expected ErrMissingManifest for empty set, got %v", err)
	}
}

func TestMaterializeRejectsTraversal(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "..", "   "} {
		files := append(validPayload(), domain.File{Name: name, Content: "x"})
		if _, _, err := m.Materialize("beefbeefbeef", "user-1", files); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("name %q: expected ErrUnsafePath, got %v", name, err)
		}
	}
	if m.Exists("beefbeefbeef") {
		t.Fatalf("directory should not exist after rejected payloads")
	}
}

func TestMaterializeNormalizesLeadingSlash(t *testing.T) {
	m := newTestManager(t)

	dir, _, err := m.Materialize("c0ffeec0ffee", "user-1", []domain.File{
		{Name: "/package.json", Content: "{}"},
	})
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		t.Fatalf("leading slash was not normalized: %v", err)
	}
}

func TestMaterializeReusesExistingDir(t *testing.T) {
	m := newTestManager(t)

	dir, created, err := m.Materialize("abc123def456", "user-1", validPayload())
	if err != nil || !created {
		t.Fatalf("first materialize: created=%v err=%v", created, err)
	}

	sentinel := filepath.Join(dir, "sentinel.txt")
	if err := os.WriteFile(sentinel, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	_, created, err = m.Materialize("abc123def456", "user-1", validPayload())
	if err != nil {
		t.Fatalf("second materialize: %v", err)
	}
	if created {
		t.Fatalf("expected the existing directory to be reused")
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("reused directory was cleaned: %v", err)
	}
}

func TestMaterializeKeepsReusedDirOnFailure(t *testing.T) {
	m := newTestManager(t)

	dir, _, err := m.Materialize("abc123def456", "user-1", validPayload())
	if err != nil {
		t.Fatalf("first materialize: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "blocked"), 0o755); err != nil {
		t.Fatalf("plant blocking dir: %v", err)
	}

	files := append(validPayload(), domain.File{Name: "blocked", Content: "cannot write over a directory"})
	if _, _, err := m.Materialize("abc123def456", "user-1", files); err == nil {
		t.Fatalf("expected write failure over existing directory")
	}
	if !m.Exists("abc123def456") {
		t.Fatalf("reused directory must survive a failed materialization")
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		t.Fatalf("reused directory contents were removed: %v", err)
	}
}

func TestMaterializeCleansFreshDirOnFailure(t *testing.T) {
	m := newTestManager(t)

	// A nested name colliding with a file written earlier in the same
	// payload forces a mid-write failure inside a fresh directory.
	files := []domain.File{
		{Name: "package.json", Content: "{}"},
		{Name: "assets", Content: "plain file"},
		{Name: "assets/app.js", Content: "console.log(1)"},
	}
	if _, _, err := m.Materialize("dead12345678", "user-1", files); err == nil {
		t.Fatalf("expected failure writing below a plain file")
	}
	if m.Exists("dead12345678") {
		t.Fatalf("fresh directory should be cleaned up after failure")
	}
}

func TestMaterializeEmptyFingerprint(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.Materialize("", "user-1", validPayload()); err == nil {
		t.Fatalf("expected error for empty fingerprint")
	}
}

func TestExists(t *testing.T) {
	m := newTestManager(t)
	if m.Exists("abc123def456") {
		t.Fatalf("Exists should be false before materialization")
	}
	if _, _, err := m.Materialize("abc123def456", "user-1", validPayload()); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !m.Exists("abc123def456") {
		t.Fatalf("Exists should be true after materialization")
	}
}
