// Package preview serves a rendered view of the docs tree for local editing,
// with navigation from the site config and live reload on file changes.
package preview

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/docsite/internal/sitecfg"
)

// Options configures the preview server.
type Options struct {
	Addr       string
	DocsDir    string
	Config     *sitecfg.Config
	Logger     logr.Logger
	LiveReload bool
}

type Server struct {
	opts Options
	tmpl *template.Template
	hub  *hub
}

// New builds a Server. The site config may be nil; pages still render but the
// sidebar is empty.
func New(opts Options) (*Server, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		addr = "127.0.0.1:8000"
	}
	opts.Addr = addr
	tmpl, err := template.New("page").Parse(pageHTML)
	if err != nil {
		return nil, err
	}
	s := &Server{opts: opts, tmpl: tmpl}
	if opts.LiveReload {
		s.hub = newHub(opts.Logger)
	}
	return s, nil
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.opts.Addr
}

// routes builds the full mux and, when live reload is on, starts the docs
// tree watcher. The returned stop function releases the watcher.
func (s *Server) routes() (http.Handler, func(), error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "ok")
	})
	stop := func() {}
	if s.hub != nil {
		mux.HandleFunc("/livereload", s.hub.handleWS)
		var err error
		stop, err = watchTree(s.opts.DocsDir, s.hub, s.opts.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("start watcher: %w", err)
		}
	}
	return mux, stop, nil
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux, stop, err := s.routes()
	if err != nil {
		return err
	}
	defer stop()
	srv := &http.Server{Addr: s.opts.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.opts.Logger.Info("preview server listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the page handler for tests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handlePage)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	reqPath := path.Clean(r.URL.Path)
	if reqPath == "/" || reqPath == "." {
		reqPath = "/index.md"
	}
	rel := strings.TrimPrefix(reqPath, "/")
	if strings.Contains(rel, "..") {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	full := filepath.Join(s.opts.DocsDir, filepath.FromSlash(rel))
	if !strings.HasSuffix(strings.ToLower(rel), ".md") {
		http.ServeFile(w, r, full)
		return
	}
	src, err := os.ReadFile(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	body, err := renderMarkdown(src)
	if err != nil {
		s.opts.Logger.Error(err, "render failed", "page", rel)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	data := pageData{
		SiteName:   "docs",
		Title:      pageTitle(s.opts.Config, rel),
		Nav:        buildNav(s.opts.Config, rel),
		Content:    body,
		LiveReload: s.hub != nil,
	}
	if s.opts.Config != nil {
		data.SiteName = s.opts.Config.SiteName
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.opts.Logger.Error(err, "template failed", "page", rel)
	}
}

type pageData struct {
	SiteName   string
	Title      string
	Nav        template.HTML
	Content    template.HTML
	LiveReload bool
}

func pageTitle(cfg *sitecfg.Config, rel string) string {
	title := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if cfg == nil {
		return title
	}
	cfg.Walk(func(item sitecfg.NavItem) {
		if filepath.ToSlash(filepath.Clean(item.Page)) == rel {
			title = sitecfg.TitleFor(item)
		}
	})
	return title
}

// buildNav renders the sidebar list. Items render as links to their page
// path; the current page is marked.
func buildNav(cfg *sitecfg.Config, current string) template.HTML {
	if cfg == nil || len(cfg.Nav) == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(items []sitecfg.NavItem)
	walk = func(items []sitecfg.NavItem) {
		b.WriteString("<ul>")
		for _, item := range items {
			if item.Page != "" {
				class := ""
				if filepath.ToSlash(filepath.Clean(item.Page)) == current {
					class = ` class="current"`
				}
				fmt.Fprintf(&b, `<li%s><a href="/%s">%s</a></li>`,
					class,
					template.HTMLEscapeString(filepath.ToSlash(item.Page)),
					template.HTMLEscapeString(sitecfg.TitleFor(item)))
				continue
			}
			fmt.Fprintf(&b, "<li><span>%s</span>", template.HTMLEscapeString(item.Title))
			walk(item.Children)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	}
	walk(cfg.Nav)
	return template.HTML(b.String())
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - {{.SiteName}}</title>
<style>
body { display: flex; font-family: sans-serif; margin: 0; }
nav { min-width: 16em; padding: 1em; background: #f5f5f5; }
nav ul { list-style: none; padding-left: 1em; }
nav .current > a { font-weight: bold; }
main { padding: 1em 2em; max-width: 50em; }
pre { background: #f0f0f0; padding: 0.8em; overflow-x: auto; }
code { font-family: monospace; }
</style>
</head>
<body>
<nav>{{.Nav}}</nav>
<main>{{.Content}}</main>
{{if .LiveReload}}<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/livereload");
  ws.onmessage = function () { location.reload(); };
})();
</script>{{end}}
</body>
</html>
`
