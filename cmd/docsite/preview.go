// preview.go wires the 'docsite preview' command: render one Markdown page
// straight to the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newPreviewCommand() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:           "preview FILE",
		Short:         "Render a Markdown page in the terminal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wrap := width
			if wrap <= 0 {
				wrap = 100
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
					wrap = w
				}
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(wrap),
			)
			if err != nil {
				return fmt.Errorf("build renderer: %w", err)
			}
			out, err := renderer.RenderBytes(src)
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 picks the terminal width)")
	decorateCommandHelp(cmd, "Preview Flags")
	return cmd
}
