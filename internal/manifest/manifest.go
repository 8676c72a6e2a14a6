// Package manifest loads and validates the sync manifest that declares which
// upstream Markdown files are mirrored into the docs tree.
package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rewrite is a single regex substitution applied to fetched content.
type Rewrite struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`

	re *regexp.Regexp
}

// Apply runs the substitution over content. Compile must have succeeded first.
func (r *Rewrite) Apply(content string) string {
	if r.re == nil {
		return content
	}
	return r.re.ReplaceAllString(content, r.Replace)
}

// Source describes one upstream file mirrored into the docs tree.
type Source struct {
	Name     string    `yaml:"name"`
	Repo     string    `yaml:"repo"` // owner/name on GitHub
	Ref      string    `yaml:"ref,omitempty"`
	Path     string    `yaml:"path"` // path of the file inside the upstream repo
	Dest     string    `yaml:"dest"` // destination relative to docsDir
	Header   *bool     `yaml:"header,omitempty"`
	Rewrites []Rewrite `yaml:"rewrites,omitempty"`
}

// Defaults are applied to sources that leave the corresponding field unset.
type Defaults struct {
	Ref    string `yaml:"ref,omitempty"`
	Header bool   `yaml:"header,omitempty"`
}

// PropKind selects how a dynamic property is resolved.
type PropKind string

const (
	PropReleaseTag  PropKind = "release-tag"
	PropReleaseDate PropKind = "release-date"
	PropFileRegex   PropKind = "file-regex"
)

// Prop declares one dynamic property substituted into docs by dynprops.
type Prop struct {
	Name    string   `yaml:"name"`
	Repo    string   `yaml:"repo"`
	Kind    PropKind `yaml:"kind"`
	Ref     string   `yaml:"ref,omitempty"`
	Path    string   `yaml:"path,omitempty"`    // file-regex only
	Pattern string   `yaml:"pattern,omitempty"` // file-regex only, first capture group wins

	re *regexp.Regexp
}

// Extract applies the file-regex pattern to content. Compile happened during
// manifest validation.
func (p *Prop) Extract(content string) (string, bool) {
	if p.re == nil {
		return "", false
	}
	m := p.re.FindStringSubmatch(content)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// Manifest is the parsed sync.yaml.
type Manifest struct {
	DocsDir  string   `yaml:"docsDir,omitempty"`
	Defaults Defaults `yaml:"defaults,omitempty"`
	Sources  []Source `yaml:"sources"`
	Props    []Prop   `yaml:"props,omitempty"`
}

const (
	defaultDocsDir = "docs"
	defaultRef     = "main"
	rawHost        = "https://raw.githubusercontent.com"
)

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Load reads, parses, and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest bytes strictly and validates the result.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.DocsDir == "" {
		m.DocsDir = defaultDocsDir
	}
	if m.Defaults.Ref == "" {
		m.Defaults.Ref = defaultRef
	}
	if len(m.Sources) == 0 && len(m.Props) == 0 {
		return fmt.Errorf("manifest declares no sources")
	}
	seenName := make(map[string]struct{}, len(m.Sources))
	seenDest := make(map[string]struct{}, len(m.Sources))
	for i := range m.Sources {
		src := &m.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("source %d: missing name", i)
		}
		if _, dup := seenName[src.Name]; dup {
			return fmt.Errorf("source %q: duplicate name", src.Name)
		}
		seenName[src.Name] = struct{}{}
		if !repoPattern.MatchString(src.Repo) {
			return fmt.Errorf("source %q: repo must be owner/name, got %q", src.Name, src.Repo)
		}
		if src.Path == "" {
			return fmt.Errorf("source %q: missing path", src.Name)
		}
		if src.Dest == "" {
			return fmt.Errorf("source %q: missing dest", src.Name)
		}
		cleaned := filepath.ToSlash(filepath.Clean(src.Dest))
		if strings.HasPrefix(cleaned, "../") || cleaned == ".." || filepath.IsAbs(src.Dest) {
			return fmt.Errorf("source %q: dest %q escapes the docs dir", src.Name, src.Dest)
		}
		src.Dest = cleaned
		if _, dup := seenDest[src.Dest]; dup {
			return fmt.Errorf("source %q: duplicate dest %q", src.Name, src.Dest)
		}
		seenDest[src.Dest] = struct{}{}
		if src.Ref == "" {
			src.Ref = m.Defaults.Ref
		}
		if src.Header == nil {
			h := m.Defaults.Header
			src.Header = &h
		}
		for j := range src.Rewrites {
			rw := &src.Rewrites[j]
			re, err := regexp.Compile(rw.Pattern)
			if err != nil {
				return fmt.Errorf("source %q: rewrite %d: %w", src.Name, j, err)
			}
			rw.re = re
		}
	}
	seenProp := make(map[string]struct{}, len(m.Props))
	for i := range m.Props {
		p := &m.Props[i]
		if p.Name == "" {
			return fmt.Errorf("prop %d: missing name", i)
		}
		if _, dup := seenProp[p.Name]; dup {
			return fmt.Errorf("prop %q: duplicate name", p.Name)
		}
		seenProp[p.Name] = struct{}{}
		if !repoPattern.MatchString(p.Repo) {
			return fmt.Errorf("prop %q: repo must be owner/name, got %q", p.Name, p.Repo)
		}
		switch p.Kind {
		case PropReleaseTag, PropReleaseDate:
		case PropFileRegex:
			if p.Path == "" || p.Pattern == "" {
				return fmt.Errorf("prop %q: file-regex needs path and pattern", p.Name)
			}
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("prop %q: %w", p.Name, err)
			}
			if re.NumSubexp() < 1 {
				return fmt.Errorf("prop %q: pattern needs a capture group", p.Name)
			}
			p.re = re
		default:
			return fmt.Errorf("prop %q: unknown kind %q", p.Name, p.Kind)
		}
		if p.Ref == "" {
			p.Ref = m.Defaults.Ref
		}
	}
	return nil
}

// RawURL returns the raw content URL the source is fetched from.
func (s *Source) RawURL() string {
	return rawHost + "/" + s.Repo + "/" + s.Ref + "/" + strings.TrimPrefix(path.Clean(s.Path), "/")
}

// RawURL returns the raw content URL for a file-regex prop.
func (p *Prop) RawURL() string {
	return rawHost + "/" + p.Repo + "/" + p.Ref + "/" + strings.TrimPrefix(path.Clean(p.Path), "/")
}

// WantHeader reports whether the generated-file banner should be prepended.
func (s *Source) WantHeader() bool {
	return s.Header != nil && *s.Header
}

// DestPath returns the absolute destination path under docsDir.
func (m *Manifest) DestPath(s *Source) string {
	return filepath.Join(m.DocsDir, filepath.FromSlash(s.Dest))
}

// Find returns the source with the given name, or nil.
func (m *Manifest) Find(name string) *Source {
	for i := range m.Sources {
		if m.Sources[i].Name == name {
			return &m.Sources[i]
		}
	}
	return nil
}
