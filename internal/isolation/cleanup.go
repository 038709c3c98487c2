package isolation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/models"
)

// StaleThreshold is the age, measured from the environment's creation
// time, past which a worktree that is not merged-and-clean is counted as
// "stale" in the worktree limit message. The spec leaves automatic
// cleanup of stale (non-merged) worktrees an open question (§9); archon
// does not remove them, only reports counts. The /worktree slash command
// does not remove stale worktrees either.
const StaleThreshold = 14 * 24 * time.Hour

// Breakdown is the total/merged/stale/active accounting behind
// formatWorktreeLimitMessage (§6).
type Breakdown struct {
	Total  int
	Limit  int
	Merged int
	Stale  int
	Active int
}

// CleanupService evicts safely-disposable worktrees (merged, no
// uncommitted changes) to make room under MAX_WORKTREES_PER_CODEBASE
// (§4.C step 4.a).
type CleanupService struct {
	envs *repositories.EnvironmentRepo
	git  gitservice.GitService
}

func NewCleanupService(envs *repositories.EnvironmentRepo, git gitservice.GitService) *CleanupService {
	return &CleanupService{envs: envs, git: git}
}

// CleanupToMakeRoom removes every active environment for codebaseID whose
// branch is merged into the repo's default branch and has no
// uncommitted changes, returning how many were removed.
func (c *CleanupService) CleanupToMakeRoom(ctx context.Context, codebaseID int64, canonicalRepo string) (int, error) {
	envs, err := c.envs.ListActiveByCodebase(codebaseID)
	if err != nil {
		return 0, fmt.Errorf("list active environments: %w", err)
	}

	removed := 0
	for _, env := range envs {
		disposable, err := c.isDisposable(ctx, canonicalRepo, env)
		if err != nil || !disposable {
			continue
		}

		if err := c.git.RemoveWorktree(ctx, canonicalRepo, env.WorkingPath); err != nil {
			continue
		}
		if err := c.envs.MarkDestroyed(env.ID); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

func (c *CleanupService) isDisposable(ctx context.Context, canonicalRepo string, env *models.IsolationEnvironment) (bool, error) {
	if !c.git.WorktreeExists(env.WorkingPath) {
		return false, nil
	}
	if c.git.HasUncommittedChanges(ctx, env.WorkingPath) {
		return false, nil
	}
	return c.git.IsBranchMerged(ctx, canonicalRepo, env.BranchName)
}

// Report builds the total/merged/stale/active breakdown for the worktree
// limit message (§6), without removing anything.
func (c *CleanupService) Report(ctx context.Context, codebaseID int64, canonicalRepo string, limit int) (Breakdown, error) {
	envs, err := c.envs.ListActiveByCodebase(codebaseID)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{Total: len(envs), Limit: limit}
	now := time.Now()
	for _, env := range envs {
		disposable, _ := c.isDisposable(ctx, canonicalRepo, env)
		switch {
		case disposable:
			b.Merged++
		case now.Sub(env.CreatedAt) >= StaleThreshold:
			b.Stale++
		default:
			b.Active++
		}
	}
	return b, nil
}

// DiskUsage sums file sizes under path (modeled on the teacher's
// session-manager disk accounting). The worktree GC job does not call it.
func DiskUsage(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
