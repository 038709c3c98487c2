package isolation

import (
	"context"
	"testing"

	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/models"
)

type fakeGit struct {
	gitservice.GitService
	createdPath string
}

func (f *fakeGit) CreateWorktreeForIssue(_ context.Context, _ string, _ string, _ bool, _, _ string) (string, error) {
	return f.createdPath, nil
}

func TestWorktreeProvider_Create_IssueBranchNaming(t *testing.T) {
	p := NewWorktreeProvider(&fakeGit{createdPath: "/repo/.worktrees/issue-7"})

	path, branch, err := p.Create(context.Background(), CreateOptions{
		WorkflowType: models.WorkflowIssue,
		Identifier:   "7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/repo/.worktrees/issue-7" {
		t.Fatalf("unexpected path: %q", path)
	}
	if branch != "issue-7" {
		t.Fatalf("expected issue-7 branch naming, got %q", branch)
	}
}

func TestWorktreeProvider_Create_PRBranchNaming(t *testing.T) {
	p := NewWorktreeProvider(&fakeGit{createdPath: "/repo/.worktrees/pr-42"})

	_, branch, err := p.Create(context.Background(), CreateOptions{
		WorkflowType: models.WorkflowPR,
		Identifier:   "42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if branch != "pr-42-review" {
		t.Fatalf("expected pr-42-review branch naming, got %q", branch)
	}
}
