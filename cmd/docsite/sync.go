// sync.go wires the 'docsite sync' command: mirror upstream Markdown into
// the docs tree per the manifest.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/docsite/internal/config"
	"github.com/example/docsite/internal/fetchcache"
	"github.com/example/docsite/internal/syncer"
	"github.com/example/docsite/internal/telemetry"
)

func newSyncCommand(opts *config.Options) *cobra.Command {
	var (
		dryRun      bool
		only        []string
		concurrency int
		noCache     bool
		cachePath   string
		summary     bool
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:           "sync",
		Short:         "Mirror canonical upstream Markdown into the docs tree",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logr.FromContextOrDiscard(cmd.Context())
			m, err := opts.LoadManifest()
			if err != nil {
				return err
			}
			if len(m.Sources) == 0 {
				return fmt.Errorf("manifest %s declares no sources", opts.ManifestPath)
			}

			var cache *fetchcache.Cache
			if !noCache {
				path := cachePath
				if path == "" {
					path = fetchcache.DefaultPath()
				}
				cache, err = fetchcache.Open(path)
				if err != nil {
					// a broken cache never blocks a sync
					logger.V(1).Info("cache unavailable, fetching everything", "error", err.Error())
					cache = nil
				}
				defer cache.Close()
			}

			runner, err := syncer.New(syncer.Options{
				Manifest:    m,
				Cache:       cache,
				Logger:      logger,
				Concurrency: concurrency,
				DryRun:      dryRun,
				Only:        only,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			timer := telemetry.NewPhaseTimer()
			var results []syncer.Result
			err = timer.Track("sync", func() error {
				var runErr error
				results, runErr = runner.Run(ctx)
				return runErr
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okMark := color.New(color.FgGreen).Sprint("✓")
			failMark := color.New(color.FgRed).Sprint("✗")
			dim := color.New(color.Faint)
			for _, res := range results {
				switch res.Status {
				case syncer.StatusSynced:
					if dryRun {
						fmt.Fprintf(out, "%s %s would update %s\n", okMark, res.Source, res.Dest)
						if res.Diff != "" {
							fmt.Fprintln(out, res.Diff)
						}
					} else {
						fmt.Fprintf(out, "%s %s -> %s\n", okMark, res.Source, res.Dest)
					}
				case syncer.StatusUnchanged:
					dim.Fprintf(out, "- %s unchanged\n", res.Source)
				case syncer.StatusFailed:
					fmt.Fprintf(out, "%s %s: %v\n", failMark, res.Source, res.Err)
				}
			}

			stats := syncer.Summarize(results)
			if summary {
				line := telemetry.Summary{
					Total:       timer.Total(),
					Phases:      timer.Snapshot(),
					Sources:     len(results),
					Synced:      stats.Synced,
					Failed:      stats.Failed,
					CacheHits:   stats.CacheHits,
					CacheMisses: len(results) - stats.CacheHits,
				}.Line()
				if line != "" {
					fmt.Fprintln(out, line)
				}
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d sources failed", stats.Failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show diffs instead of writing files")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Sync only the named sources (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum concurrent fetches")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the etag cache and fetch everything")
	cmd.Flags().StringVar(&cachePath, "cache-path", "", "Override the fetch cache location")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a telemetry summary line after the run")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall sync deadline (0 means no deadline)")
	decorateCommandHelp(cmd, "Sync Flags")
	return cmd
}
