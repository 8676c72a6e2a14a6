// serve.go wires the 'docsite serve' command: a local rendered preview of
// the docs tree with live reload.
package main

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/docsite/internal/config"
	"github.com/example/docsite/internal/preview"
	"github.com/example/docsite/internal/sitecfg"
)

func newServeCommand(opts *config.Options) *cobra.Command {
	var (
		addr         string
		noLivereload bool
	)
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Preview the docs tree locally with live reload",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logr.FromContextOrDiscard(cmd.Context())
			var cfg *sitecfg.Config
			if _, err := os.Stat(opts.SiteConfigPath); err == nil {
				cfg, err = sitecfg.Load(opts.SiteConfigPath)
				if err != nil {
					return err
				}
			} else {
				logger.Info("site config not found, serving without navigation", "path", opts.SiteConfigPath)
			}
			srv, err := preview.New(preview.Options{
				Addr:       addr,
				DocsDir:    opts.ResolveDocsDir(),
				Config:     cfg,
				Logger:     logger,
				LiveReload: !noLivereload,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address for the preview server")
	cmd.Flags().BoolVar(&noLivereload, "no-livereload", false, "Disable the file watcher and reload socket")
	decorateCommandHelp(cmd, "Serve Flags")
	return cmd
}
