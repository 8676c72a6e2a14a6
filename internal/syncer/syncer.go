// Package syncer mirrors upstream Markdown files into the local docs tree
// according to the sync manifest: fetch, rewrite, banner, atomic install.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"github.com/example/docsite/internal/fetchcache"
	"github.com/example/docsite/internal/manifest"
)

// Status classifies the outcome of syncing one source.
type Status string

const (
	StatusSynced    Status = "synced"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// Result reports the outcome for a single manifest source.
type Result struct {
	Source      string
	Dest        string
	Status      Status
	NotModified bool // true when the upstream returned 304 against the cached etag
	Diff        string
	Err         error
}

// Options configures a sync run.
type Options struct {
	Manifest    *manifest.Manifest
	Cache       *fetchcache.Cache
	Client      *http.Client
	Logger      logr.Logger
	Concurrency int
	DryRun      bool
	Only        []string
	UserAgent   string

	// Retry knobs; zero values pick the defaults below.
	MaxAttempts int
	Backoff     time.Duration
}

const (
	defaultConcurrency = 4
	defaultAttempts    = 3
	defaultBackoff     = 500 * time.Millisecond
	defaultUserAgent   = "docsite-sync"
)

// Runner executes sync runs against a fixed manifest.
type Runner struct {
	opts Options
}

// New validates options and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Manifest == nil {
		return nil, fmt.Errorf("syncer: manifest is required")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Runner{opts: opts}, nil
}

// Run syncs every selected source. Per-source failures are recorded in the
// returned results rather than aborting the run; the error return is reserved
// for context cancellation and source-selection mistakes.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	sources, err := r.selectSources()
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = r.syncOne(gctx, src)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Source < results[b].Source })
	return results, nil
}

func (r *Runner) selectSources() ([]*manifest.Source, error) {
	m := r.opts.Manifest
	if len(r.opts.Only) == 0 {
		out := make([]*manifest.Source, len(m.Sources))
		for i := range m.Sources {
			out[i] = &m.Sources[i]
		}
		return out, nil
	}
	var out []*manifest.Source
	for _, name := range r.opts.Only {
		src := m.Find(name)
		if src == nil {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		out = append(out, src)
	}
	return out, nil
}

func (r *Runner) syncOne(ctx context.Context, src *manifest.Source) Result {
	log := r.opts.Logger.WithValues("source", src.Name)
	res := Result{Source: src.Name, Dest: src.Dest}
	dest := r.opts.Manifest.DestPath(src)

	url := src.RawURL()
	sig := transformSignature(src)
	etag := ""
	if cached, ok := r.opts.Cache.Get(ctx, src.Name); ok && cached.URL == url && cached.TransformSig == sig {
		if _, err := os.Stat(dest); err == nil {
			etag = cached.ETag
		}
	}

	fetched, err := r.fetch(ctx, url, etag)
	if err != nil {
		log.Error(err, "fetch failed", "url", url)
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	if fetched.notModified {
		log.V(1).Info("upstream unchanged", "etag", etag)
		res.Status = StatusUnchanged
		res.NotModified = true
		return res
	}

	content := transform(src, string(fetched.body))
	sum := sha256.Sum256([]byte(content))

	existing, readErr := os.ReadFile(dest)
	if readErr == nil && string(existing) == content {
		res.Status = StatusUnchanged
		r.recordFetch(ctx, src, url, fetched.etag, sum)
		return res
	}

	if r.opts.DryRun {
		res.Status = StatusSynced
		res.Diff = unifiedDiff(dest, string(existing), content)
		return res
	}

	if err := installAtomic(dest, content); err != nil {
		log.Error(err, "write failed", "dest", dest)
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	r.recordFetch(ctx, src, url, fetched.etag, sum)
	log.V(1).Info("synced", "dest", dest, "bytes", len(content))
	res.Status = StatusSynced
	return res
}

func (r *Runner) recordFetch(ctx context.Context, src *manifest.Source, url, etag string, sum [sha256.Size]byte) {
	err := r.opts.Cache.Put(ctx, fetchcache.Entry{
		Source:       src.Name,
		URL:          url,
		ETag:         etag,
		SHA256:       hex.EncodeToString(sum[:]),
		TransformSig: transformSignature(src),
		SyncedAt:     time.Now().UTC(),
	})
	if err != nil {
		r.opts.Logger.V(1).Info("cache update failed", "source", src.Name, "error", err.Error())
	}
}

// transformSignature fingerprints the parts of the source config that shape
// the installed file. A cached etag is only reusable while it matches;
// otherwise a 304 would leave stale rewrites on disk.
func transformSignature(src *manifest.Source) string {
	h := sha256.New()
	fmt.Fprintf(h, "header=%t\n", src.WantHeader())
	for i := range src.Rewrites {
		fmt.Fprintf(h, "rewrite=%s\x00%s\n", src.Rewrites[i].Pattern, src.Rewrites[i].Replace)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// transform applies the source's rewrites and optional generated-file banner.
func transform(src *manifest.Source, content string) string {
	for i := range src.Rewrites {
		content = src.Rewrites[i].Apply(content)
	}
	if src.WantHeader() {
		banner := fmt.Sprintf(
			"<!-- This file is synced from %s@%s:%s. Edit the upstream file; local changes will be overwritten. -->\n\n",
			src.Repo, src.Ref, src.Path)
		content = banner + content
	}
	return content
}

// installAtomic writes content next to dest and renames it into place.
func installAtomic(dest, content string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sync-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install %s: %w", dest, err)
	}
	return nil
}

func unifiedDiff(dest, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: dest,
		ToFile:   dest + " (new)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}

// Summary condenses a result list into counts for the run report.
type Summary struct {
	Synced    int
	Unchanged int
	Failed    int
	CacheHits int
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, res := range results {
		switch res.Status {
		case StatusSynced:
			s.Synced++
		case StatusUnchanged:
			s.Unchanged++
			if res.NotModified {
				s.CacheHits++
			}
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
