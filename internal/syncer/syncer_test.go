// syncer_test.go exercises fetch, rewrite, banner, caching, and dry-run paths
// against a local HTTP server.
package syncer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/docsite/internal/fetchcache"
	"github.com/example/docsite/internal/manifest"
)

// testManifest builds a one-source manifest whose RawURL is rewritten to hit
// the given test server through a stub transport.
func testManifest(t *testing.T, docsDir, yaml string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	m.DocsDir = docsDir
	return m
}

// rewriteTransport redirects every request to the test server regardless of host.
type rewriteTransport struct {
	target *httptest.Server
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = strings.TrimPrefix(rt.target.URL, "http://")
	return http.DefaultTransport.RoundTrip(clone)
}

func testClient(srv *httptest.Server) *http.Client {
	return &http.Client{Transport: &rewriteTransport{target: srv}}
}

const oneSource = `
defaults:
  header: true
sources:
  - name: changelog
    repo: kube-rs/kube
    path: CHANGELOG.md
    dest: changelog.md
    rewrites:
      - pattern: '(?m)^## '
        replace: '# '
`

func TestRunSyncsAndRewrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kube-rs/kube/main/CHANGELOG.md" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, "## 1.0.0\ntext\n")
	}))
	defer srv.Close()

	docs := t.TempDir()
	m := testManifest(t, docs, oneSource)
	runner, err := New(Options{Manifest: m, Client: testClient(srv), Logger: logr.Discard()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusSynced {
		t.Fatalf("unexpected results: %+v", results)
	}
	data, err := os.ReadFile(filepath.Join(docs, "changelog.md"))
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "<!-- This file is synced from kube-rs/kube@main:CHANGELOG.md") {
		t.Fatalf("missing generated banner:\n%s", content)
	}
	if !strings.Contains(content, "# 1.0.0") || strings.Contains(content, "## 1.0.0") {
		t.Fatalf("rewrite not applied:\n%s", content)
	}
}

func TestRunUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, "body\n")
	}))
	defer srv.Close()

	docs := t.TempDir()
	cache, err := fetchcache.Open(filepath.Join(t.TempDir(), "fetch.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	m := testManifest(t, docs, oneSource)
	runner, err := New(Options{Manifest: m, Cache: cache, Client: testClient(srv), Logger: logr.Discard()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx := context.Background()
	first, err := runner.Run(ctx)
	if err != nil || first[0].Status != StatusSynced {
		t.Fatalf("first run: %v %+v", err, first)
	}
	second, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Status != StatusUnchanged || !second[0].NotModified {
		t.Fatalf("expected 304 short-circuit, got %+v", second[0])
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestRunRefetchesWhenRewritesChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, "## 1.0.0\ntext\n")
	}))
	defer srv.Close()

	docs := t.TempDir()
	cache, err := fetchcache.Open(filepath.Join(t.TempDir(), "fetch.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	runner, err := New(Options{
		Manifest: testManifest(t, docs, oneSource),
		Cache:    cache, Client: testClient(srv), Logger: logr.Discard(),
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	first, err := runner.Run(ctx)
	if err != nil || first[0].Status != StatusSynced {
		t.Fatalf("first run: %v %+v", err, first)
	}

	// same source, different rewrite: the stored etag must not be reused,
	// otherwise a 304 leaves the old rewrite on disk
	edited := strings.Replace(oneSource, "replace: '# '", "replace: '### '", 1)
	runner, err = New(Options{
		Manifest: testManifest(t, docs, edited),
		Cache:    cache, Client: testClient(srv), Logger: logr.Discard(),
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	second, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Status != StatusSynced || second[0].NotModified {
		t.Fatalf("changed rewrites must force a refetch, got %+v", second[0])
	}
	data, err := os.ReadFile(filepath.Join(docs, "changelog.md"))
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !strings.Contains(string(data), "### 1.0.0") {
		t.Fatalf("new rewrite not applied:\n%s", data)
	}

	// the rerecorded signature makes the next run with the same manifest
	// hit the 304 path again
	third, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third[0].Status != StatusUnchanged || !third[0].NotModified {
		t.Fatalf("expected 304 short-circuit after resync, got %+v", third[0])
	}
}

func TestRunRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flake", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "stable\n")
	}))
	defer srv.Close()

	m := testManifest(t, t.TempDir(), oneSource)
	runner, err := New(Options{
		Manifest: m, Client: testClient(srv), Logger: logr.Discard(),
		MaxAttempts: 3, Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if results[0].Status != StatusSynced {
		t.Fatalf("expected recovery after retries, got %+v", results[0])
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRunDoesNotRetry404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m := testManifest(t, t.TempDir(), oneSource)
	runner, err := New(Options{
		Manifest: m, Client: testClient(srv), Logger: logr.Discard(),
		MaxAttempts: 3, Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if results[0].Status != StatusFailed || results[0].Err == nil {
		t.Fatalf("expected terminal failure, got %+v", results[0])
	}
	if calls.Load() != 1 {
		t.Fatalf("404 should not be retried, got %d attempts", calls.Load())
	}
}

func TestRunDryRunProducesDiffWithoutWriting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "new content\n")
	}))
	defer srv.Close()

	docs := t.TempDir()
	dest := filepath.Join(docs, "changelog.md")
	if err := os.WriteFile(dest, []byte("old content\n"), 0o644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	m := testManifest(t, docs, oneSource)
	runner, err := New(Options{Manifest: m, Client: testClient(srv), Logger: logr.Discard(), DryRun: true})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if results[0].Status != StatusSynced || results[0].Diff == "" {
		t.Fatalf("expected diff in dry run, got %+v", results[0])
	}
	if !strings.Contains(results[0].Diff, "-old content") {
		t.Fatalf("diff missing removal:\n%s", results[0].Diff)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "old content\n" {
		t.Fatalf("dry run must not write, file now:\n%s", data)
	}
}

func TestRunOnlyUnknownSource(t *testing.T) {
	m := testManifest(t, t.TempDir(), oneSource)
	runner, err := New(Options{Manifest: m, Logger: logr.Discard(), Only: []string{"nope"}})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error for unknown --only source")
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Status: StatusSynced},
		{Status: StatusUnchanged, NotModified: true},
		{Status: StatusUnchanged},
		{Status: StatusFailed, Err: fmt.Errorf("boom")},
	}
	s := Summarize(results)
	if s.Synced != 1 || s.Unchanged != 2 || s.Failed != 1 || s.CacheHits != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
