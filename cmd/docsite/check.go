// check.go wires the 'docsite check' command: navigation validation plus
// internal (and optionally external) link checking.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/docsite/internal/config"
	"github.com/example/docsite/internal/linkcheck"
	"github.com/example/docsite/internal/sitecfg"
)

func newCheckCommand(opts *config.Options) *cobra.Command {
	var (
		external    bool
		timeout     time.Duration
		concurrency int
		strict      bool
	)
	cmd := &cobra.Command{
		Use:           "check",
		Short:         "Validate navigation and links across the docs tree",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logr.FromContextOrDiscard(cmd.Context())
			out := cmd.OutOrStdout()
			docsDir := opts.ResolveDocsDir()
			warn := color.New(color.FgYellow)
			fail := color.New(color.FgRed)

			problems := 0
			if _, err := os.Stat(opts.SiteConfigPath); err == nil {
				cfg, err := sitecfg.Load(opts.SiteConfigPath)
				if err != nil {
					return err
				}
				report, err := cfg.Validate(docsDir)
				if err != nil {
					return err
				}
				for _, page := range report.Missing {
					fail.Fprintf(out, "nav: %s has no backing file\n", page)
					problems++
				}
				for _, orphan := range report.Orphans {
					warn.Fprintf(out, "nav: %s is not reachable from the navigation\n", orphan)
					if strict {
						problems++
					}
				}
			} else {
				logger.Info("site config not found, skipping nav validation", "path", opts.SiteConfigPath)
			}

			checker := &linkcheck.Checker{
				DocsDir:     docsDir,
				External:    external,
				Client:      &http.Client{Timeout: timeout},
				Concurrency: concurrency,
				Logger:      logger,
			}
			issues, err := checker.Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fail.Fprintf(out, "link: %s\n", issue)
			}
			problems += len(issues)

			if problems > 0 {
				return fmt.Errorf("found %d problem(s)", problems)
			}
			fmt.Fprintln(out, "docs tree is clean")
			return nil
		},
	}
	cmd.Flags().BoolVar(&external, "external", false, "Also probe external http(s) links")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Per-request timeout for external probes")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "Maximum concurrent external probes")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat orphaned pages as failures")
	decorateCommandHelp(cmd, "Check Flags")
	return cmd
}
