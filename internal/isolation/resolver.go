package isolation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/archon-run/archon/internal/classify"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/models"
	"github.com/archon-run/archon/internal/platform"
)

// MaxWorktreesPerCodebase bounds how many active environments one
// codebase may hold before creation is blocked (§5).
const MaxWorktreesPerCodebase = 25

// Blocked is the sentinel the orchestrator checks for after Resolve: the
// user was already messaged, and the caller must stop silently (§4.K
// step 5).
var Blocked = fmt.Errorf("isolation: blocked")

// Result is what a successful Resolve call hands back to the
// orchestrator: the cwd to run in, the environment backing it, and
// whether it was freshly created this call (drives session rotation,
// §4.K step 6).
type Result struct {
	Cwd           string
	Environment   *models.IsolationEnvironment
	IsNewIsolation bool
}

// Resolver implements the §4.C algorithm end to end.
type Resolver struct {
	envs     *repositories.EnvironmentRepo
	git      gitservice.GitService
	provider Provider
	cleanup  *CleanupService
	logger   *slog.Logger
}

func NewResolver(envs *repositories.EnvironmentRepo, git gitservice.GitService, provider Provider, cleanup *CleanupService) *Resolver {
	return &Resolver{
		envs:     envs,
		git:      git,
		provider: provider,
		cleanup:  cleanup,
		logger:   slog.Default().With("component", "isolation_resolver"),
	}
}

// log returns the request-scoped structured logger, falling back to
// slog.Default() for a Resolver built without NewResolver.
func (r *Resolver) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Resolve runs the reuse → link-sharing → skill-adoption → limit →
// create chain, stopping at the first step that yields a result. It
// returns the Blocked sentinel (check with errors.Is) when the request was
// already messaged and failed; any other error is unexpected/internal.
func (r *Resolver) Resolve(ctx context.Context, codebase *models.Codebase, adapter platform.Adapter, conversationID string, hints *models.IsolationHints) (*Result, error) {
	if hints == nil {
		hints = &models.IsolationHints{}
	}
	workflowType := models.WorkflowThread
	workflowID := conversationID
	if hints.WorkflowType != "" {
		workflowType = models.WorkflowType(hints.WorkflowType)
	}
	if hints.WorkflowID != "" {
		workflowID = hints.WorkflowID
	}

	log := r.log().With("codebase_id", codebase.ID, "workflow_type", string(workflowType), "workflow_id", workflowID)

	// Step 1: reuse.
	if env, err := r.envs.GetActiveByIdentity(codebase.ID, workflowType, workflowID); err == nil {
		if r.git.WorktreeExists(env.WorkingPath) {
			log.Debug("reusing active isolation environment", "cwd", env.WorkingPath)
			return &Result{Cwd: env.WorkingPath, Environment: env}, nil
		}
	}

	// Step 2: link-based sharing.
	for _, issueN := range hints.LinkedIssues {
		env, err := r.envs.GetActiveByIdentity(codebase.ID, models.WorkflowIssue, issueN)
		if err != nil || !r.git.WorktreeExists(env.WorkingPath) {
			continue
		}
		log.Debug("adopting worktree via linked issue", "linked_issue", issueN, "cwd", env.WorkingPath)
		_ = adapter.SendMessage(ctx, conversationID, fmt.Sprintf("Reusing worktree from issue #%s", issueN))
		return &Result{Cwd: env.WorkingPath, Environment: env}, nil
	}

	// Step 3: skill adoption.
	if hints.PRBranch != "" {
		path, found, err := r.git.FindWorktreeByBranch(ctx, codebase.DefaultCwd, hints.PRBranch)
		if err == nil && found && r.git.WorktreeExists(path) {
			env, err := r.envs.Create(&models.IsolationEnvironment{
				CodebaseID:        codebase.ID,
				WorkflowType:      workflowType,
				WorkflowID:        workflowID,
				Provider:          "worktree",
				WorkingPath:       path,
				BranchName:        hints.PRBranch,
				CreatedByPlatform: adapter.PlatformType().String(),
				Metadata:          map[string]string{"adopted": "true", "adopted_from": "skill"},
			})
			if err == nil {
				log.Debug("adopted existing branch worktree", "pr_branch", hints.PRBranch, "cwd", path)
				return &Result{Cwd: path, Environment: env, IsNewIsolation: true}, nil
			}
		}
	}

	// Step 4: limit enforcement.
	count, err := r.envs.CountActiveByCodebase(codebase.ID)
	if err != nil {
		return nil, fmt.Errorf("count active environments: %w", err)
	}
	if count >= MaxWorktreesPerCodebase {
		removed, _ := r.cleanup.CleanupToMakeRoom(ctx, codebase.ID, codebase.DefaultCwd)
		if removed > 0 {
			log.Info("cleaned up merged worktrees to make room", "removed", removed)
			_ = adapter.SendMessage(ctx, conversationID, fmt.Sprintf("Cleaned up %d merged worktree(s) to make room.", removed))
			count, err = r.envs.CountActiveByCodebase(codebase.ID)
			if err != nil {
				return nil, fmt.Errorf("recount active environments: %w", err)
			}
		}
		if count >= MaxWorktreesPerCodebase {
			log.Warn("worktree limit reached, blocking isolation request", "count", count, "limit", MaxWorktreesPerCodebase)
			breakdown, _ := r.cleanup.Report(ctx, codebase.ID, codebase.DefaultCwd, MaxWorktreesPerCodebase)
			_ = adapter.SendMessage(ctx, conversationID, formatWorktreeLimitMessage(codebase.Name, breakdown))
			return nil, Blocked
		}
	}

	// Step 5: create.
	path, branch, err := r.provider.Create(ctx, CreateOptions{
		CodebaseID:        codebase.ID,
		CanonicalRepoPath: codebase.DefaultCwd,
		WorkflowType:      workflowType,
		Identifier:        workflowID,
		PRBranch:          hints.PRBranch,
		PRSHA:             hints.PRSHA,
		IsForkPR:          hints.IsForkPR,
	})
	if err != nil {
		log.Error("isolation environment creation failed", "error", err)
		_, userMessage := classify.ClassifyIsolationError(err)
		_ = adapter.SendMessage(ctx, conversationID, userMessage)
		return nil, Blocked
	}
	log.Debug("created new isolation environment", "cwd", path, "branch", branch)

	metadata := map[string]string{}
	if len(hints.LinkedIssues) > 0 {
		metadata["related_issues"] = strings.Join(hints.LinkedIssues, ",")
	}
	if len(hints.LinkedPRs) > 0 {
		metadata["related_prs"] = strings.Join(hints.LinkedPRs, ",")
	}

	env, err := r.envs.Create(&models.IsolationEnvironment{
		CodebaseID:        codebase.ID,
		WorkflowType:      workflowType,
		WorkflowID:        workflowID,
		Provider:          "worktree",
		WorkingPath:       path,
		BranchName:        branch,
		CreatedByPlatform: adapter.PlatformType().String(),
		Metadata:          metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("persist isolation environment: %w", err)
	}

	return &Result{Cwd: path, Environment: env, IsNewIsolation: true}, nil
}

func formatWorktreeLimitMessage(codebaseName string, b Breakdown) string {
	msg := fmt.Sprintf("Worktree limit reached (%d/%d) for **%s**.\n\n**Status:**\n• %d merged (can auto-remove)\n• %d stale (no activity in %d+ days)\n• %d active\n\n**Options:**\n",
		b.Total, b.Limit, codebaseName, b.Merged, b.Stale, int(StaleThreshold.Hours()/24), b.Active)
	if b.Stale > 0 {
		msg += "• `/worktree cleanup stale` - Remove stale worktrees\n"
	}
	msg += "• `/worktree list` - See all worktrees\n• `/worktree remove <name>` - Remove specific worktree"
	return msg
}
