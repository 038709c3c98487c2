package gitservice

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}

	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test User")
	run("remote", "add", "origin", "git@github.com:acme/widgets.git")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# widgets"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")

	return dir
}

func TestCreateWorktreeForIssue(t *testing.T) {
	repo := initTestRepo(t)
	base := t.TempDir()
	svc := New(base)
	ctx := context.Background()

	path, err := svc.CreateWorktreeForIssue(ctx, repo, "42", false, "", "")
	if err != nil {
		t.Fatalf("CreateWorktreeForIssue: %v", err)
	}

	if !svc.WorktreeExists(path) {
		t.Fatalf("expected worktree to exist at %s", path)
	}
	if !svc.IsWorktreePath(path) {
		t.Fatalf("expected %s to be recognized as a worktree path", path)
	}

	canonical, err := svc.GetCanonicalRepoPath(path)
	if err != nil {
		t.Fatalf("GetCanonicalRepoPath: %v", err)
	}
	if realRepo, _ := filepath.EvalSymlinks(repo); realRepo != "" {
		if realCanonical, _ := filepath.EvalSymlinks(canonical); realCanonical != realRepo {
			t.Fatalf("expected canonical path %s, got %s", realRepo, realCanonical)
		}
	}

	wantPath := filepath.Join(base, "acme", "widgets", "issue-42")
	if realPath, _ := filepath.EvalSymlinks(path); realPath != "" {
		if realWant, _ := filepath.EvalSymlinks(wantPath); realWant != "" && realWant != realPath {
			t.Fatalf("expected path %s, got %s", wantPath, path)
		}
	}
}

func TestCreateWorktreeForIssue_RetriesWithoutDashB(t *testing.T) {
	repo := initTestRepo(t)
	base := t.TempDir()
	svc := New(base)
	ctx := context.Background()

	path1, err := svc.CreateWorktreeForIssue(ctx, repo, "7", false, "", "")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := svc.RemoveWorktree(ctx, repo, path1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	path2, err := svc.CreateWorktreeForIssue(ctx, repo, "7", false, "", "")
	if err != nil {
		t.Fatalf("second create (branch already exists): %v", err)
	}
	if !svc.WorktreeExists(path2) {
		t.Fatalf("expected reused-branch worktree to exist")
	}
}

func TestHasUncommittedChanges_ENOENT(t *testing.T) {
	svc := New(t.TempDir())
	if svc.HasUncommittedChanges(context.Background(), filepath.Join(t.TempDir(), "missing")) {
		t.Fatal("expected false for a missing path (ENOENT exception to fail-safe true)")
	}
}

func TestIsWorktreePath_FalseForCanonicalRepo(t *testing.T) {
	repo := initTestRepo(t)
	svc := New(t.TempDir())
	if svc.IsWorktreePath(repo) {
		t.Fatal("canonical repo should not be reported as a worktree path")
	}
}
