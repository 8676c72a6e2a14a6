// config_test.go verifies option defaults, docs-dir resolution, and validation.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	if opts.ManifestPath != "sync.yaml" {
		t.Fatalf("manifest default mismatch: %q", opts.ManifestPath)
	}
	if opts.SiteConfigPath != "mkdocs.yml" {
		t.Fatalf("site config default mismatch: %q", opts.SiteConfigPath)
	}
	if opts.LogLevel != "info" {
		t.Fatalf("log level default mismatch: %q", opts.LogLevel)
	}
}

func TestResolveDocsDirFlagWins(t *testing.T) {
	opts := NewOptions()
	opts.DocsDir = "elsewhere"
	if got := opts.ResolveDocsDir(); got != "elsewhere" {
		t.Fatalf("flag should win, got %q", got)
	}
}

func TestResolveDocsDirFromManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "sync.yaml")
	content := "docsDir: site-docs\nsources:\n  - {name: a, repo: o/r, path: x.md, dest: x.md}\n"
	if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	opts := NewOptions()
	opts.ManifestPath = manifestPath
	if got := opts.ResolveDocsDir(); got != "site-docs" {
		t.Fatalf("manifest docsDir should apply, got %q", got)
	}
}

func TestResolveDocsDirFallback(t *testing.T) {
	opts := NewOptions()
	opts.ManifestPath = filepath.Join(t.TempDir(), "missing.yaml")
	if got := opts.ResolveDocsDir(); got != "docs" {
		t.Fatalf("expected fallback to docs, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	opts := NewOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	opts.ManifestPath = ""
	if err := opts.Validate(); err == nil {
		t.Fatalf("empty manifest path should fail")
	}

	opts = NewOptions()
	file := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts.DocsDir = file
	if err := opts.Validate(); err == nil {
		t.Fatalf("docs-dir pointing at a file should fail")
	}
}
