package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/db"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/isolation"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Inspect and reclaim isolation-environment worktrees",
}

var worktreeListCmd = &cobra.Command{
	Use:   "list <codebase-id>",
	Short: "List active worktrees for a codebase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codebaseID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid codebase id %q: %w", args[0], err)
		}

		repos, _, err := openRepos()
		if err != nil {
			return err
		}

		envs, err := repos.Environments.ListActiveByCodebase(codebaseID)
		if err != nil {
			return fmt.Errorf("list environments: %w", err)
		}
		for _, env := range envs {
			fmt.Printf("%d\t%s\t%s\t%s\n", env.ID, env.WorkflowType, env.BranchName, env.WorkingPath)
		}
		return nil
	},
}

var worktreeCleanupCmd = &cobra.Command{
	Use:   "cleanup <codebase-id> <canonical-repo-path>",
	Short: "Evict merged, clean worktrees to make room under the per-codebase limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		codebaseID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid codebase id %q: %w", args[0], err)
		}

		repos, cfg, err := openRepos()
		if err != nil {
			return err
		}

		git := gitservice.New(cfg.Worktree.BaseDir)
		cleanup := isolation.NewCleanupService(repos.Environments, git)

		removed, err := cleanup.CleanupToMakeRoom(context.Background(), codebaseID, args[1])
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Printf("Removed %d worktree(s).\n", removed)
		return nil
	},
}

func openRepos() (*repositories.Repositories, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	return repositories.New(database), cfg, nil
}
