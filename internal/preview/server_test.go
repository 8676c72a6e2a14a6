// server_test.go drives the page handler through httptest and checks the
// markdown renderer output.
package preview

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/docsite/internal/sitecfg"
)

func testServer(t *testing.T, files map[string]string, cfgYAML string) *Server {
	t.Helper()
	docs := t.TempDir()
	for name, content := range files {
		path := filepath.Join(docs, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	var cfg *sitecfg.Config
	if cfgYAML != "" {
		var err error
		cfg, err = sitecfg.Parse([]byte(cfgYAML))
		if err != nil {
			t.Fatalf("parse config: %v", err)
		}
	}
	srv, err := New(Options{DocsDir: docs, Config: cfg, Logger: logr.Discard()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return rec.Code, string(body)
}

func TestServeRendersMarkdown(t *testing.T) {
	srv := testServer(t, map[string]string{
		"index.md": "# Welcome\n\nSome *text*.\n",
	}, "site_name: kube\nnav:\n  - index.md\n")
	code, body := get(t, srv.Handler(), "/")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if !strings.Contains(body, `<h1 id="welcome">Welcome</h1>`) {
		t.Fatalf("heading with auto id missing:\n%s", body)
	}
	if !strings.Contains(body, "<em>text</em>") {
		t.Fatalf("emphasis missing:\n%s", body)
	}
	if !strings.Contains(body, "<title>Home - kube</title>") {
		t.Fatalf("title missing:\n%s", body)
	}
}

func TestServeBuildsNavSidebar(t *testing.T) {
	srv := testServer(t, map[string]string{
		"index.md":            "# Home\n",
		"guide/installing.md": "# Installing\n",
		"guide/quickstart.md": "# Quickstart\n",
	}, `
site_name: kube
nav:
  - index.md
  - Guide:
      - Installing: guide/installing.md
      - guide/quickstart.md
`)
	code, body := get(t, srv.Handler(), "/guide/installing.md")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if !strings.Contains(body, `<a href="/guide/installing.md">Installing</a>`) {
		t.Fatalf("nav link missing:\n%s", body)
	}
	if !strings.Contains(body, `class="current"`) {
		t.Fatalf("current page not marked:\n%s", body)
	}
	if !strings.Contains(body, "<span>Guide</span>") {
		t.Fatalf("section heading missing:\n%s", body)
	}
}

func TestServeUnknownPage(t *testing.T) {
	srv := testServer(t, map[string]string{"index.md": "# Home\n"}, "")
	code, _ := get(t, srv.Handler(), "/missing.md")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestServeRejectsTraversal(t *testing.T) {
	srv := testServer(t, map[string]string{"index.md": "# Home\n"}, "")
	req := httptest.NewRequest(http.MethodGet, "/x.md", nil)
	req.URL.Path = "/../secrets.md"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("traversal must not succeed")
	}
}

func TestServeHealthz(t *testing.T) {
	srv := testServer(t, map[string]string{"index.md": "# Home\n"}, "")
	mux, stop, err := srv.routes()
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	defer stop()
	code, body := get(t, mux, "/healthz")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if body != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestServeLiveReloadBroadcastsOnChange(t *testing.T) {
	docs := t.TempDir()
	page := filepath.Join(docs, "index.md")
	if err := os.WriteFile(page, []byte("# Home\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	srv, err := New(Options{DocsDir: docs, Logger: logr.Discard(), LiveReload: true})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	mux, stop, err := srv.routes()
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	defer stop()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/livereload"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the server a moment to register the connection before the
	// watcher sees the change
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(page, []byte("# Home\n\nEdited.\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if string(msg) != "reload" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRenderMarkdownTables(t *testing.T) {
	out, err := renderMarkdown([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(string(out), "<table>") {
		t.Fatalf("GFM tables not rendered:\n%s", out)
	}
}

func TestRenderMarkdownEmoji(t *testing.T) {
	out, err := renderMarkdown([]byte("ship it :rocket:\n"))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(string(out), ":rocket:") {
		t.Fatalf("emoji shortcode not expanded:\n%s", out)
	}
}
