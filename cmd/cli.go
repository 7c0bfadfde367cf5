// Package cmd parses the vis-capture command line, grounded on the
// teacher's cmd/cli.go cobra wiring: a root command carrying persistent
// flags plus a `list` subcommand.
package cmd

import (
	"os"

	"viscapture/internal/build"
	"viscapture/internal/config"

	"github.com/spf13/cobra"
)

// ParseArgs parses os.Args (via cobra) into a Config, layering flag
// defaults under an optional --config YAML file and VIS_* environment
// overrides, per SPEC_FULL.md §9.1: flags set the baseline, LoadConfig
// overlays YAML and environment, then any flag the user explicitly passed
// wins back over the file.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var configPath string
	options := config.NewConfig()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig(cmd, configPath, options)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, configPath, options); err != nil {
				return err
			}
			options.Command = "list"
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().IntVarP(&options.Port, "port", "p", config.DefaultPort,
		"TCP port to bind the WebSocket server on")
	rootCmd.PersistentFlags().StringVarP(&options.Source, "source", "s", config.DefaultSource,
		"Capture source name, or the default-loopback sentinel")
	rootCmd.PersistentFlags().IntVarP(&options.BarCount, "bar-count", "b", config.DefaultBarCount,
		"Number of bars in the emitted spectrum")
	rootCmd.PersistentFlags().IntVarP(&options.FreqMax, "freq-max", "f", config.DefaultFreqMax,
		"Upper frequency bound in Hz for the log-spaced bins")
	rootCmd.PersistentFlags().IntVarP(&options.FPS, "fps", "r", config.DefaultFPS,
		"Bar vector emission rate")
	rootCmd.PersistentFlags().StringVarP(&options.LogLevel, "log-level", "v", config.DefaultLogLevel,
		"Log verbosity: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to an optional YAML configuration file")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// resolveConfig loads the optional YAML file and environment overrides,
// then re-applies any CLI flag the user explicitly set (so a flag always
// wins over the file), writing the result into options.
func resolveConfig(cmd *cobra.Command, configPath string, options *config.Config) error {
	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Port = options.Port
	}
	if flags.Changed("source") {
		loaded.Source = options.Source
	}
	if flags.Changed("bar-count") {
		loaded.BarCount = options.BarCount
	}
	if flags.Changed("freq-max") {
		loaded.FreqMax = options.FreqMax
	}
	if flags.Changed("fps") {
		loaded.FPS = options.FPS
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = options.LogLevel
	}

	*options = *loaded
	return nil
}
