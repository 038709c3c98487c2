package artifactsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/archon-run/archon/internal/gitservice"
)

// fakeGit is a minimal gitservice.GitService stub: artifactsync only ever
// calls IsWorktreePath and GetCanonicalRepoPath.
type fakeGit struct {
	canonical string
}

func (f *fakeGit) WorktreeExists(string) bool { return true }
func (f *fakeGit) ListWorktrees(context.Context, string) ([]gitservice.WorktreeInfo, error) {
	return nil, nil
}
func (f *fakeGit) FindWorktreeByBranch(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeGit) CreateWorktreeForIssue(context.Context, string, string, bool, string, string) (string, error) {
	return "", nil
}
func (f *fakeGit) RemoveWorktree(context.Context, string, string) error { return nil }
func (f *fakeGit) GetCanonicalRepoPath(string) (string, error)          { return f.canonical, nil }
func (f *fakeGit) IsWorktreePath(string) bool                           { return true }
func (f *fakeGit) HasUncommittedChanges(context.Context, string) bool   { return false }
func (f *fakeGit) CommitAllChanges(context.Context, string, string) (bool, error) {
	return false, nil
}
func (f *fakeGit) IsBranchMerged(context.Context, string, string) (bool, error) { return false, nil }

func TestSync_CopiesMetadataIntoFreshWorktree(t *testing.T) {
	canonical := t.TempDir()
	worktree := t.TempDir()

	meta := filepath.Join(canonical, ".archon")
	if err := os.MkdirAll(meta, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(meta, "notes.md"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(&fakeGit{canonical: canonical})
	if !s.Sync(worktree) {
		t.Fatalf("expected Sync to report a copy happened")
	}

	got, err := os.ReadFile(filepath.Join(worktree, ".archon", "notes.md"))
	if err != nil {
		t.Fatalf("expected notes.md to be copied: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected copied contents to match, got %q", got)
	}
}

func TestSync_NoCanonicalMetadataIsANoOp(t *testing.T) {
	canonical := t.TempDir()
	worktree := t.TempDir()

	s := New(&fakeGit{canonical: canonical})
	if s.Sync(worktree) {
		t.Fatalf("expected no copy when the canonical repo has no .archon directory")
	}
}

func TestSync_SkipsWhenWorktreeCopyIsAlreadyFresh(t *testing.T) {
	canonical := t.TempDir()
	worktree := t.TempDir()

	canonicalMeta := filepath.Join(canonical, ".archon")
	if err := os.MkdirAll(canonicalMeta, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(canonicalMeta, "notes.md"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	worktreeMeta := filepath.Join(worktree, ".archon")
	if err := os.MkdirAll(worktreeMeta, 0755); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(canonicalMeta, old, old); err != nil {
		t.Fatal(err)
	}

	s := New(&fakeGit{canonical: canonical})
	if s.Sync(worktree) {
		t.Fatalf("expected no copy when the worktree's metadata dir is already at least as fresh")
	}
}
