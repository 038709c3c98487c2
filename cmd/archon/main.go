package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/logging"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "archon",
		Short: "Archon - multi-platform remote orchestrator for AI coding assistants",
		Long: `Archon routes messages from chat platforms and source-control events to
slash commands, per-repo YAML workflows, and streaming AI assistant calls,
each attached to an isolated git worktree.`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/archon/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(worktreeCmd)

	worktreeCmd.AddCommand(worktreeListCmd)
	worktreeCmd.AddCommand(worktreeCleanupCmd)
}

func initLogging() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logging.Initialize(debug)
		return
	}
	logging.Initialize(debug || cfg.Debug)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
