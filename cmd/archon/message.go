package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/archon-run/archon/internal/artifactsync"
	"github.com/archon-run/archon/internal/command"
	"github.com/archon-run/archon/internal/db"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/isolation"
	"github.com/archon-run/archon/internal/lock"
	"github.com/archon-run/archon/internal/orchestrator"
	"github.com/archon-run/archon/internal/platform/mock"
)

var messageConversationID string

var messageCmd = &cobra.Command{
	Use:   "message <text>",
	Short: "Run one message through the pipeline on the synthetic mock adapter, for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		repos := repositories.New(database)
		git := gitservice.New(cfg.Worktree.BaseDir)
		provider := isolation.NewWorktreeProvider(git)
		cleanup := isolation.NewCleanupService(repos.Environments, git)
		resolver := isolation.NewResolver(repos.Environments, git, provider, cleanup)
		syncer := artifactsync.New(git)
		router := command.New(repos.Conversations, repos.Codebases, repos.Sessions, repos.Templates)
		assistants := buildAssistants(cfg)
		executor := newWorkflowExecutor(repos.Codebases, assistants)
		orch := orchestrator.New(repos, lock.New(cfg.Concurrency.GlobalLimit), git, resolver, syncer, router, assistants, executor)

		adapter := mock.New("")
		if messageConversationID == "" {
			messageConversationID = "cli-session"
		}

		before := len(adapter.Messages())
		orch.Dispatch(orchestrator.Message{Platform: adapter, ConversationID: messageConversationID, Text: args[0]})

		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) && len(adapter.Messages()) == before {
			time.Sleep(50 * time.Millisecond)
		}

		for _, msg := range adapter.Messages()[before:] {
			fmt.Println(strings.TrimRight(msg, "\n"))
		}
		return nil
	},
}

func init() {
	messageCmd.Flags().StringVar(&messageConversationID, "conversation", "", "conversation id to attach the message to (default: a fixed CLI session)")
	rootCmd.AddCommand(messageCmd)
}
