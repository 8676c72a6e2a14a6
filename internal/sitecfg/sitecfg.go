// Package sitecfg models the mkdocs.yml site configuration: metadata, theme
// passthrough, and the navigation tree. The schema is owned by mkdocs, so
// unknown keys are tolerated and carried opaquely.
package sitecfg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NavItem is one entry of the nav tree. Exactly one of Page or Children is
// set. Bare string entries produce an item with an empty Title.
type NavItem struct {
	Title    string
	Page     string
	Children []NavItem
}

// UnmarshalYAML accepts the three shapes mkdocs allows:
//
//	- page.md
//	- Title: page.md
//	- Title:
//	    - nested...
func (n *NavItem) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		n.Page = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: nav entry must have exactly one key", node.Line)
		}
		key, val := node.Content[0], node.Content[1]
		n.Title = key.Value
		switch val.Kind {
		case yaml.ScalarNode:
			n.Page = val.Value
			return nil
		case yaml.SequenceNode:
			return val.Decode(&n.Children)
		default:
			return fmt.Errorf("line %d: nav entry %q must map to a page or a list", val.Line, n.Title)
		}
	default:
		return fmt.Errorf("line %d: unsupported nav entry", node.Line)
	}
}

// Theme carries the theme name plus any remaining keys untouched.
type Theme struct {
	Name  string
	Extra map[string]yaml.Node
}

func (t *Theme) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Name = node.Value
		return nil
	}
	raw := map[string]yaml.Node{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if name, ok := raw["name"]; ok {
		t.Name = name.Value
		delete(raw, "name")
	}
	t.Extra = raw
	return nil
}

// Config is the parsed site configuration.
type Config struct {
	SiteName           string      `yaml:"site_name"`
	SiteURL            string      `yaml:"site_url,omitempty"`
	SiteDescription    string      `yaml:"site_description,omitempty"`
	RepoURL            string      `yaml:"repo_url,omitempty"`
	RepoName           string      `yaml:"repo_name,omitempty"`
	EditURI            string      `yaml:"edit_uri,omitempty"`
	DocsDir            string      `yaml:"docs_dir,omitempty"`
	Theme              Theme       `yaml:"theme,omitempty"`
	MarkdownExtensions []yaml.Node `yaml:"markdown_extensions,omitempty"`
	Plugins            []yaml.Node `yaml:"plugins,omitempty"`
	Extra              yaml.Node   `yaml:"extra,omitempty"`
	ExtraCSS           []string    `yaml:"extra_css,omitempty"`
	Nav                []NavItem   `yaml:"nav"`
}

// Load reads and parses a mkdocs.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	return Parse(data)
}

// Parse decodes site configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}
	if cfg.SiteName == "" {
		return nil, fmt.Errorf("site config: site_name is required")
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = "docs"
	}
	return &cfg, nil
}

// Walk visits every page reference in nav order.
func (c *Config) Walk(fn func(item NavItem)) {
	var walk func(items []NavItem)
	walk = func(items []NavItem) {
		for _, item := range items {
			if item.Page != "" {
				fn(item)
			}
			walk(item.Children)
		}
	}
	walk(c.Nav)
}

// Pages returns every page path referenced by nav, in order.
func (c *Config) Pages() []string {
	var pages []string
	c.Walk(func(item NavItem) { pages = append(pages, item.Page) })
	return pages
}

// ValidationReport lists nav entries without a backing file and markdown
// files on disk that nav never reaches.
type ValidationReport struct {
	Missing []string
	Orphans []string
}

func (r ValidationReport) OK() bool {
	return len(r.Missing) == 0
}

// Validate checks the nav tree against the docs tree rooted at docsDir.
func (c *Config) Validate(docsDir string) (ValidationReport, error) {
	var report ValidationReport
	referenced := make(map[string]struct{})
	for _, page := range c.Pages() {
		clean := filepath.ToSlash(filepath.Clean(page))
		referenced[clean] = struct{}{}
		if _, err := os.Stat(filepath.Join(docsDir, filepath.FromSlash(clean))); err != nil {
			report.Missing = append(report.Missing, page)
		}
	}
	err := filepath.WalkDir(docsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(docsDir, path)
		if err != nil {
			return err
		}
		if _, ok := referenced[filepath.ToSlash(rel)]; !ok {
			report.Orphans = append(report.Orphans, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk docs dir: %w", err)
	}
	sort.Strings(report.Orphans)
	return report, nil
}

// TitleFor returns the nav title for an item, deriving one from the file
// name when the entry was a bare string.
func TitleFor(item NavItem) string {
	if item.Title != "" {
		return item.Title
	}
	base := strings.TrimSuffix(filepath.Base(item.Page), filepath.Ext(item.Page))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	if base == "index" {
		return "Home"
	}
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
