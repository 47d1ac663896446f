// Package main is the entry point for the ccontrol daemon CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Everest18/claude-code-telegram-control/internal/config"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/pkg/app"
	"github.com/spf13/cobra"

	// Compiled-in modules register themselves via init.
	_ "github.com/Everest18/claude-code-telegram-control/internal/cron"
	_ "github.com/Everest18/claude-code-telegram-control/internal/gateway"
	_ "github.com/Everest18/claude-code-telegram-control/internal/heartbeat"
	_ "github.com/Everest18/claude-code-telegram-control/modules/bridge/mcp"
	_ "github.com/Everest18/claude-code-telegram-control/modules/channel/telegram"
	_ "github.com/Everest18/claude-code-telegram-control/modules/executor/cloud"
	_ "github.com/Everest18/claude-code-telegram-control/modules/executor/local"
	_ "github.com/Everest18/claude-code-telegram-control/modules/store/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ccontrol",
		Short:         "Control a local Claude Code agent from Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), initCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("ccontrol %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath   string
		dataDir   string
		workspace string
		logLevel  string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				DataDir:    dataDir,
				Workspace:  workspace,
				LogLevel:   level,
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Persistent data directory")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Directory the agent works in")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			appCtx := core.NewAppContext(logger, app.DefaultDataDir(), app.DefaultWorkspace())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			application := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := application.LoadModules(ids); err != nil {
				return err
			}
			defer application.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (use debug, info, warn, or error)", s)
	}
}
