// main.go bootstraps docsite: it builds the root Cobra command, wires viper
// config binding, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/docsite/internal/config"
	"github.com/example/docsite/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	cmd := &cobra.Command{
		Use:   "docsite",
		Short: "Maintain the documentation website: sync upstream pages, preview, check links",
		Long: `docsite keeps the documentation site honest. It mirrors canonical Markdown
from sibling repositories per the sync manifest, previews the docs tree
locally with live reload, validates navigation and links, and refreshes
dynamic properties embedded in pages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			logger, err := logging.New(opts.LogLevel)
			if err != nil {
				return err
			}
			if opts.NoColor {
				color.NoColor = true
			}
			// the hook runs on the executing subcommand; setting the
			// context there is what RunE later sees
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	opts.BindFlags(cmd.PersistentFlags())

	syncCmd := newSyncCommand(opts)
	serveCmd := newServeCommand(opts)
	checkCmd := newCheckCommand(opts)
	dynpropsCmd := newDynpropsCommand(opts)
	previewCmd := newPreviewCommand()
	cmd.AddCommand(syncCmd, serveCmd, checkCmd, dynpropsCmd, previewCmd)
	cmd.AddCommand(newDocsCommand(), newVersionCommand())
	cmd.AddCommand(newCompletionCommand(cmd))
	cmd.Example = `  # Mirror upstream pages into docs/
  docsite sync

  # See what a sync would change without writing
  docsite sync --dry-run

  # Preview the site locally with live reload
  docsite serve --addr 127.0.0.1:8000

  # Validate navigation and every internal link
  docsite check

  # Refresh release version markers across the docs tree
  docsite dynprops`
	decorateCommandHelp(cmd, "Global Flags")
	bindViper(cmd, syncCmd, serveCmd, checkCmd, dynpropsCmd, previewCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("DOCSITE")
	v.AutomaticEnv()
	configFile := os.Getenv("DOCSITE_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()}
			for _, fs := range flagSets {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "docsite"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".config", "docsite"))
		add(filepath.Join(home, ".docsite"))
	}
	add(".")
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: upstream fetches timed out. Check network connectivity or raise --timeout.", err)
	case errors.Is(err, os.ErrNotExist) && strings.Contains(message, "manifest"):
		message = fmt.Sprintf("%s\nHint: run from the website checkout or point --manifest at the sync manifest.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
