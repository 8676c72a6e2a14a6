// Package linkcheck scans the docs tree for Markdown links and verifies that
// internal targets (files and heading anchors) resolve. External URLs can
// optionally be probed over HTTP.
package linkcheck

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Link is one outgoing reference found in a Markdown file.
type Link struct {
	File   string // path relative to the docs dir
	Line   int
	Target string
}

// Issue describes a link that failed verification.
type Issue struct {
	File   string
	Line   int
	Target string
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", i.File, i.Line, i.Target, i.Reason)
}

// Checker verifies links under DocsDir.
type Checker struct {
	DocsDir     string
	External    bool
	Client      *http.Client
	Concurrency int
	Logger      logr.Logger
}

var (
	inlineLinkRe = regexp.MustCompile(`!?\[[^\]]*\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	refDefRe     = regexp.MustCompile(`^\s*\[[^\]]+\]:\s*(\S+)`)
	autoLinkRe   = regexp.MustCompile(`<(https?://[^>\s]+)>`)
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fenceRe      = regexp.MustCompile("^\\s*(```|~~~)")
)

// Run scans the tree and returns every broken link. The error return covers
// filesystem problems, not broken links.
func (c *Checker) Run(ctx context.Context) ([]Issue, error) {
	files, err := c.markdownFiles()
	if err != nil {
		return nil, err
	}
	anchors := make(map[string]map[string]struct{}, len(files))
	linksByFile := make(map[string][]Link, len(files))
	for _, rel := range files {
		links, heads, err := scanFile(filepath.Join(c.DocsDir, rel), rel)
		if err != nil {
			return nil, err
		}
		anchors[rel] = heads
		linksByFile[rel] = links
	}

	var issues []Issue
	var external []Link
	for _, rel := range files {
		for _, link := range linksByFile[rel] {
			target := link.Target
			switch {
			case strings.HasPrefix(target, "mailto:"):
				continue
			case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
				if c.External {
					external = append(external, link)
				}
				continue
			}
			if issue, bad := c.checkInternal(link, anchors); bad {
				issues = append(issues, issue)
			}
		}
	}
	if len(external) > 0 {
		extIssues, err := c.checkExternal(ctx, external)
		if err != nil {
			return nil, err
		}
		issues = append(issues, extIssues...)
	}
	sort.Slice(issues, func(a, b int) bool {
		if issues[a].File != issues[b].File {
			return issues[a].File < issues[b].File
		}
		return issues[a].Line < issues[b].Line
	})
	return issues, nil
}

func (c *Checker) markdownFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.DocsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(c.DocsDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk docs dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (c *Checker) checkInternal(link Link, anchors map[string]map[string]struct{}) (Issue, bool) {
	target, fragment, _ := strings.Cut(link.Target, "#")
	targetFile := link.File
	if target != "" {
		resolved := filepath.ToSlash(filepath.Join(filepath.Dir(link.File), target))
		if strings.HasPrefix(resolved, "../") {
			return Issue{File: link.File, Line: link.Line, Target: link.Target, Reason: "escapes docs dir"}, true
		}
		if _, err := os.Stat(filepath.Join(c.DocsDir, filepath.FromSlash(resolved))); err != nil {
			return Issue{File: link.File, Line: link.Line, Target: link.Target, Reason: "file not found"}, true
		}
		targetFile = resolved
	}
	if fragment == "" {
		return Issue{}, false
	}
	heads, ok := anchors[targetFile]
	if !ok {
		// fragment into a non-markdown file; nothing to verify
		return Issue{}, false
	}
	if _, ok := heads[strings.ToLower(fragment)]; !ok {
		return Issue{File: link.File, Line: link.Line, Target: link.Target, Reason: "anchor not found"}, true
	}
	return Issue{}, false
}

// scanFile extracts links and heading anchors, skipping fenced code blocks.
func scanFile(path, rel string) ([]Link, map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	var links []Link
	anchors := make(map[string]struct{})
	slugCounts := make(map[string]int)
	inFence := false
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if fenceRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			slug := slugify(m[2])
			if n := slugCounts[slug]; n > 0 {
				anchors[fmt.Sprintf("%s-%d", slug, n)] = struct{}{}
			} else {
				anchors[slug] = struct{}{}
			}
			slugCounts[slug]++
			continue
		}
		for _, m := range inlineLinkRe.FindAllStringSubmatch(line, -1) {
			links = append(links, Link{File: rel, Line: lineNo, Target: m[1]})
		}
		if m := refDefRe.FindStringSubmatch(line); m != nil {
			links = append(links, Link{File: rel, Line: lineNo, Target: m[1]})
		}
		for _, m := range autoLinkRe.FindAllStringSubmatch(line, -1) {
			links = append(links, Link{File: rel, Line: lineNo, Target: m[1]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", rel, err)
	}
	return links, anchors, nil
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9 _-]`)

// slugify approximates the GitHub-style anchor slug for a heading.
func slugify(heading string) string {
	s := strings.TrimSpace(heading)
	s = strings.TrimRight(s, "#")
	s = strings.TrimSpace(s)
	// drop inline markdown emphasis and code markers before slugging
	s = strings.NewReplacer("`", "", "*", "", "_", "_").Replace(s)
	s = strings.ToLower(s)
	s = slugStripRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func (c *Checker) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}
