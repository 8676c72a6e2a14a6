// docs.go registers the 'docsite docs' command that renders the bundled
// reference topics in the terminal.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/docsite/docs"
)

var docTopics = map[string]string{
	"manifest":        docs.ManifestMD,
	"workflow":        docs.WorkflowMD,
	"troubleshooting": docs.TroubleshootingMD,
}

func newDocsCommand() *cobra.Command {
	names := make([]string, 0, len(docTopics))
	for name := range docTopics {
		names = append(names, name)
	}
	sort.Strings(names)

	cmd := &cobra.Command{
		Use:           "docs [TOPIC]",
		Short:         "Show bundled documentation topics",
		Long:          fmt.Sprintf("Render a bundled topic in the terminal. Topics: %s.", strings.Join(names, ", ")),
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     names,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Available topics:")
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
				}
				return nil
			}
			topic, ok := docTopics[args[0]]
			if !ok {
				return fmt.Errorf("unknown topic %q (want one of %s)", args[0], strings.Join(names, ", "))
			}
			wrap := 100
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < wrap {
				wrap = w
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(wrap),
			)
			if err != nil {
				return fmt.Errorf("build renderer: %w", err)
			}
			out, err := renderer.Render(topic)
			if err != nil {
				return fmt.Errorf("render topic: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	decorateCommandHelp(cmd, "Docs Flags")
	return cmd
}
