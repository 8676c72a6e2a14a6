// dynprops.go wires the 'docsite dynprops' command: refresh dynamic property
// regions (release version markers and friends) across the docs tree.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/docsite/internal/config"
	"github.com/example/docsite/internal/dynprops"
)

func newDynpropsCommand(opts *config.Options) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:           "dynprops",
		Short:         "Refresh dynamic properties embedded in docs pages",
		Long: `dynprops resolves the properties declared in the manifest (latest release
tag, release date, values scraped from upstream files) and substitutes them
into <!-- prop:NAME --> regions across the docs tree.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logr.FromContextOrDiscard(cmd.Context())
			m, err := opts.LoadManifest()
			if err != nil {
				return err
			}
			if len(m.Props) == 0 {
				return fmt.Errorf("manifest %s declares no props", opts.ManifestPath)
			}

			resolver := &dynprops.Resolver{Logger: logger}
			values, failures := resolver.Resolve(cmd.Context(), m.Props)
			out := cmd.OutOrStdout()
			warn := color.New(color.FgYellow)
			for _, f := range failures {
				warn.Fprintf(out, "unresolved %s: %v\n", f.Name, f.Err)
			}
			if len(values) == 0 {
				return fmt.Errorf("no properties could be resolved")
			}

			changes, err := dynprops.Apply(m.DocsDir, values, check)
			if err != nil {
				return err
			}
			for _, change := range changes {
				verb := "updated"
				if check {
					verb = "stale"
				}
				fmt.Fprintf(out, "%s %s (%s)\n", verb, change.Path, strings.Join(change.Props, ", "))
			}
			if check && len(changes) > 0 {
				return fmt.Errorf("%d file(s) out of date, run 'docsite dynprops' to refresh", len(changes))
			}
			if len(changes) == 0 {
				fmt.Fprintln(out, "properties are up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Report stale files without writing")
	decorateCommandHelp(cmd, "Dynprops Flags")
	return cmd
}
