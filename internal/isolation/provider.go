// Package isolation implements IsolationResolver/IsolationProvider (§4.C):
// resolving, reusing, adopting, and — when limits allow — creating the
// git-worktree-backed IsolationEnvironment a conversation's turn runs in.
package isolation

import (
	"context"
	"fmt"

	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/models"
)

// CreateOptions mirrors the IsolationProvider.create input of §4.C.
type CreateOptions struct {
	CodebaseID        int64
	CanonicalRepoPath string
	WorkflowType      models.WorkflowType
	Identifier        string // workflowId: issue/PR number or thread id
	PRBranch          string
	PRSHA             string
	IsForkPR          bool
}

// Provider materializes a new isolation environment on disk.
type Provider interface {
	Create(ctx context.Context, opts CreateOptions) (workingPath, branchName string, err error)
}

// WorktreeProvider is the sole Provider implementation: git worktrees via
// gitservice.GitService, per the PR/issue creation semantics of §4.C.
type WorktreeProvider struct {
	git gitservice.GitService
}

func NewWorktreeProvider(git gitservice.GitService) *WorktreeProvider {
	return &WorktreeProvider{git: git}
}

func (p *WorktreeProvider) Create(ctx context.Context, opts CreateOptions) (string, string, error) {
	isPR := opts.WorkflowType == models.WorkflowPR
	path, err := p.git.CreateWorktreeForIssue(ctx, opts.CanonicalRepoPath, opts.Identifier, isPR, opts.PRBranch, opts.PRSHA)
	if err != nil {
		return "", "", err
	}

	var branch string
	if isPR {
		branch = fmt.Sprintf("pr-%s-review", opts.Identifier)
	} else {
		branch = fmt.Sprintf("issue-%s", opts.Identifier)
	}
	return path, branch, nil
}
