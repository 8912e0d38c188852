// Package main is the entry point for the meterbot CLI.
package main

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/flemzord/meterbot/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meterbot",
		Short:         "A metered, single-flight chat assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meterbot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath string
		dataDir string
		debug   bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot and the HTTP gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				DataDir:    dataDir,
				LogLevel:   level,
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for the SQLite database")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (default model: %s)\n", cfg.DefaultModel())
			for _, name := range slices.Sorted(maps.Keys(cfg.Models.Available)) {
				fmt.Fprintf(out, "  model %s\n", name)
			}
			if cfg.Channel.Telegram != nil {
				fmt.Fprintln(out, "  channel telegram")
			}
			if cfg.Gateway != nil {
				fmt.Fprintf(out, "  gateway %s\n", cfg.Gateway.Bind)
			}
			return nil
		},
	})
	return cmd
}
