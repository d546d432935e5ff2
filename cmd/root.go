package cmd

import (
	"github.com/spf13/cobra"

	"github.com/displayhal/composerconf/internal/config"
	"github.com/displayhal/composerconf/internal/logger"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath string

	rootCmd = &cobra.Command{
		Use:   "composerconf",
		Short: "Composerconf - display composition conformance client",
		Long: `Composerconf exercises a display composition service the way a
conformance harness does: it negotiates capabilities, discovers displays,
creates and destroys layers and virtual displays, and verifies that the
service delivered no unexpected notifications along the way.

Without a service binding it runs against a built-in simulated service,
which makes it a self-check for the harness logic itself.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				config.SetConfigPath(configPath)
			}
			if err := config.Init(); err != nil {
				return err
			}
			if level := config.Get().Logging.LogLevel; level != "" {
				logger.SetLevel(level)
			}
			return nil
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(displaysCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dumpCmd)
}
