// Package dynprops resolves dynamic site properties (latest release tag,
// release date, values scraped out of upstream files) and substitutes them
// into marked regions of the docs tree.
package dynprops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/docsite/internal/manifest"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultRawBase = "https://raw.githubusercontent.com"
)

// Resolver fetches property values from GitHub.
type Resolver struct {
	Client    *http.Client
	Logger    logr.Logger
	APIBase   string // overridable for tests
	RawBase   string
	UserAgent string
}

// Failure records a property that could not be resolved.
type Failure struct {
	Name string
	Err  error
}

// Resolve returns the value for every resolvable property plus per-property
// failures. A failure never aborts the rest of the batch.
func (r *Resolver) Resolve(ctx context.Context, props []manifest.Prop) (map[string]string, []Failure) {
	values := make(map[string]string, len(props))
	var failures []Failure
	for i := range props {
		p := &props[i]
		value, err := r.resolveOne(ctx, p)
		if err != nil {
			r.Logger.V(1).Info("property unresolved", "prop", p.Name, "error", err.Error())
			failures = append(failures, Failure{Name: p.Name, Err: err})
			continue
		}
		values[p.Name] = value
	}
	return values, failures
}

type releaseInfo struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
}

func (r *Resolver) resolveOne(ctx context.Context, p *manifest.Prop) (string, error) {
	switch p.Kind {
	case manifest.PropReleaseTag, manifest.PropReleaseDate:
		rel, err := r.latestRelease(ctx, p.Repo)
		if err != nil {
			return "", err
		}
		if p.Kind == manifest.PropReleaseTag {
			return rel.TagName, nil
		}
		return rel.PublishedAt.Format("2006-01-02"), nil
	case manifest.PropFileRegex:
		base := r.RawBase
		if base == "" {
			base = defaultRawBase
		}
		url := base + "/" + p.Repo + "/" + p.Ref + "/" + p.Path
		body, err := r.get(ctx, url)
		if err != nil {
			return "", err
		}
		value, ok := p.Extract(string(body))
		if !ok {
			return "", fmt.Errorf("pattern %q matched nothing in %s", p.Pattern, p.Path)
		}
		return value, nil
	default:
		return "", fmt.Errorf("unknown prop kind %q", p.Kind)
	}
}

func (r *Resolver) latestRelease(ctx context.Context, repo string) (releaseInfo, error) {
	base := r.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	body, err := r.get(ctx, base+"/repos/"+repo+"/releases/latest")
	if err != nil {
		return releaseInfo{}, err
	}
	var rel releaseInfo
	if err := json.Unmarshal(body, &rel); err != nil {
		return releaseInfo{}, fmt.Errorf("decode release for %s: %w", repo, err)
	}
	if rel.TagName == "" {
		return releaseInfo{}, fmt.Errorf("no releases published for %s", repo)
	}
	return rel, nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	ua := r.UserAgent
	if ua == "" {
		ua = "docsite-dynprops"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/vnd.github+json")
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FileChange reports a file touched (or in --check mode, out of date).
type FileChange struct {
	Path  string // relative to docs dir
	Props []string
}

// Apply substitutes resolved values into <!-- prop:NAME -->...<!-- /prop:NAME -->
// regions across the docs tree. With check=true nothing is written; the
// returned changes list the files that are stale. Substitution is idempotent:
// the markers stay in place and only the enclosed value is replaced.
func Apply(docsDir string, values map[string]string, check bool) ([]FileChange, error) {
	regions := make(map[string]*regexp.Regexp, len(values))
	for name := range values {
		re, err := regexp.Compile(fmt.Sprintf(`(?s)(<!-- prop:%s -->).*?(<!-- /prop:%s -->)`,
			regexp.QuoteMeta(name), regexp.QuoteMeta(name)))
		if err != nil {
			return nil, err
		}
		regions[name] = re
	}

	var changes []FileChange
	err := filepath.WalkDir(docsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(data)
		var touched []string
		for name, re := range regions {
			opening := fmt.Sprintf("<!-- prop:%s -->", name)
			closing := fmt.Sprintf("<!-- /prop:%s -->", name)
			// ReplaceAllStringFunc keeps values with $ in them literal
			replaced := re.ReplaceAllStringFunc(content, func(string) string {
				return opening + values[name] + closing
			})
			if replaced != content {
				content = replaced
				touched = append(touched, name)
			}
		}
		if len(touched) == 0 {
			return nil
		}
		sort.Strings(touched)
		rel, relErr := filepath.Rel(docsDir, path)
		if relErr != nil {
			rel = path
		}
		changes = append(changes, FileChange{Path: filepath.ToSlash(rel), Props: touched})
		if check {
			return nil
		}
		return os.WriteFile(path, []byte(content), 0o644)
	})
	if err != nil {
		return nil, fmt.Errorf("apply properties: %w", err)
	}
	sort.Slice(changes, func(a, b int) bool { return changes[a].Path < changes[b].Path })
	return changes, nil
}
