// Package config defines the flag plumbing shared by docsite commands,
// translating Cobra/Viper flag values into a strongly typed struct the sync,
// preview, and check paths consume.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/example/docsite/internal/manifest"
)

// Options holds the global CLI configuration.
type Options struct {
	ManifestPath   string
	DocsDir        string
	SiteConfigPath string
	LogLevel       string
	NoColor        bool
}

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		ManifestPath:   "sync.yaml",
		SiteConfigPath: "mkdocs.yml",
		LogLevel:       "info",
	}
}

// BindFlags attaches the global flags to the given FlagSet.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ManifestPath, "manifest", o.ManifestPath, "Path to the sync manifest")
	fs.StringVar(&o.DocsDir, "docs-dir", o.DocsDir, "Docs tree root (defaults to the manifest's docsDir)")
	fs.StringVar(&o.SiteConfigPath, "site-config", o.SiteConfigPath, "Path to the mkdocs site configuration")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log verbosity: debug, info, warn, or error")
	fs.BoolVar(&o.NoColor, "no-color", false, "Disable colored output")
}

// LoadManifest parses the manifest and applies the --docs-dir override.
func (o *Options) LoadManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(o.ManifestPath)
	if err != nil {
		return nil, err
	}
	if o.DocsDir != "" {
		m.DocsDir = o.DocsDir
	}
	return m, nil
}

// ResolveDocsDir picks the docs tree root for commands that can run without
// a manifest: the flag wins, then the manifest (if readable), then "docs".
func (o *Options) ResolveDocsDir() string {
	if o.DocsDir != "" {
		return o.DocsDir
	}
	if m, err := manifest.Load(o.ManifestPath); err == nil && m.DocsDir != "" {
		return m.DocsDir
	}
	return "docs"
}

// Validate rejects option combinations no command can act on.
func (o *Options) Validate() error {
	if o.ManifestPath == "" {
		return fmt.Errorf("--manifest cannot be empty")
	}
	if o.DocsDir != "" {
		if info, err := os.Stat(o.DocsDir); err == nil && !info.IsDir() {
			return fmt.Errorf("--docs-dir %q is not a directory", o.DocsDir)
		}
	}
	return nil
}
