// check_test.go runs the check command against fixture docs trees.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.Execute()
	return out.String(), err
}

func TestCheckCleanTree(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"docs/index.md": "# Home\n\n[guide](guide.md)\n",
		"docs/guide.md": "# Guide\n\n[back](index.md#home)\n",
		"mkdocs.yml":    "site_name: test\nnav:\n  - index.md\n  - guide.md\n",
	})
	out, err := runRoot(t,
		"check",
		"--docs-dir", filepath.Join(dir, "docs"),
		"--site-config", filepath.Join(dir, "mkdocs.yml"),
	)
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "docs tree is clean") {
		t.Fatalf("missing clean message:\n%s", out)
	}
}

func TestCheckReportsProblems(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"docs/index.md": "# Home\n\n[dead](missing.md)\n",
		"mkdocs.yml":    "site_name: test\nnav:\n  - index.md\n  - ghost.md\n",
	})
	out, err := runRoot(t,
		"check",
		"--docs-dir", filepath.Join(dir, "docs"),
		"--site-config", filepath.Join(dir, "mkdocs.yml"),
	)
	if err == nil {
		t.Fatalf("expected failure, output:\n%s", out)
	}
	if !strings.Contains(out, "ghost.md has no backing file") {
		t.Fatalf("nav problem not reported:\n%s", out)
	}
	if !strings.Contains(out, "missing.md") {
		t.Fatalf("link problem not reported:\n%s", out)
	}
}

func TestCheckStrictFlagsOrphans(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"docs/index.md":  "# Home\n",
		"docs/orphan.md": "# Lost\n",
		"mkdocs.yml":     "site_name: test\nnav:\n  - index.md\n",
	})
	args := []string{
		"check",
		"--docs-dir", filepath.Join(dir, "docs"),
		"--site-config", filepath.Join(dir, "mkdocs.yml"),
	}
	if out, err := runRoot(t, args...); err != nil {
		t.Fatalf("orphans alone should only warn: %v\n%s", err, out)
	}
	if _, err := runRoot(t, append(args, "--strict")...); err == nil {
		t.Fatalf("--strict should fail on orphans")
	}
}
