// Package gitservice is the sole collaborator that shells out to the git
// binary. Every worktree-related operation the isolation resolver needs is
// expressed here behind the GitService interface (§4.A / out-of-scope (a)
// of the orchestrator spec).
package gitservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// WorktreeInfo describes one entry of `git worktree list --porcelain`.
type WorktreeInfo struct {
	Path   string
	Branch string
}

// GitService is the collaborator contract the isolation resolver depends
// on. Network/worktree operations are given a 30s timeout, local ones a
// 10s timeout, per §5 of the orchestrator spec.
type GitService interface {
	WorktreeExists(path string) bool
	ListWorktrees(ctx context.Context, repo string) ([]WorktreeInfo, error)
	FindWorktreeByBranch(ctx context.Context, repo, branch string) (string, bool, error)
	CreateWorktreeForIssue(ctx context.Context, repo string, n string, isPR bool, prBranch, prSHA string) (string, error)
	RemoveWorktree(ctx context.Context, repo, path string) error
	GetCanonicalRepoPath(path string) (string, error)
	IsWorktreePath(path string) bool
	HasUncommittedChanges(ctx context.Context, path string) bool
	CommitAllChanges(ctx context.Context, path, msg string) (bool, error)

	// IsBranchMerged reports whether branch is an ancestor of the
	// repository's default branch, the "safely disposable" test the
	// cleanup service uses before evicting a worktree (§4.C step 4.a).
	IsBranchMerged(ctx context.Context, repo, branch string) (bool, error)
}

const (
	networkTimeout = 30 * time.Second
	localTimeout   = 10 * time.Second
)

// Shell is the concrete GitService implementation backed by the `git`
// binary, in the teacher's style of shelling out per-operation with
// exec.CommandContext and a working directory (see pkg/gitwt.Manager).
type Shell struct {
	worktreeBase string
}

// New builds a Shell-backed GitService rooted at worktreeBase, the
// directory under which "<owner>/<repo>/<branch>" worktree paths are
// created (§4.C "Paths are <worktree-base>/<owner>/<repo>/<branch-name>").
func New(worktreeBase string) *Shell {
	return &Shell{worktreeBase: worktreeBase}
}

func (s *Shell) run(ctx context.Context, timeout time.Duration, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// WorktreeExists reports whether path exists on disk and is a directory.
func (s *Shell) WorktreeExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ListWorktrees parses `git worktree list --porcelain`.
func (s *Shell) ListWorktrees(ctx context.Context, repo string) ([]WorktreeInfo, error) {
	out, err := s.run(ctx, localTimeout, repo, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var result []WorktreeInfo
	var cur WorktreeInfo
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur.Path != "" {
				result = append(result, cur)
			}
			cur = WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	if cur.Path != "" {
		result = append(result, cur)
	}
	return result, nil
}

// FindWorktreeByBranch returns the worktree path checked out on branch, if
// any, for the "skill adoption" step of isolation resolution (§4.C.3).
func (s *Shell) FindWorktreeByBranch(ctx context.Context, repo, branch string) (string, bool, error) {
	trees, err := s.ListWorktrees(ctx, repo)
	if err != nil {
		return "", false, err
	}
	for _, wt := range trees {
		if wt.Branch == branch {
			return wt.Path, true, nil
		}
	}
	return "", false, nil
}

// CreateWorktreeForIssue implements the PR/issue worktree creation
// semantics of §4.C: prSHA takes priority over prBranch for
// reproducibility and fork-PR safety (fetching GitHub's pull/<n>/head
// ref rather than a fork-owned branch from origin); issue-style workflows
// create a plain "issue-<n>" branch, retrying without -b if it already
// exists (branch reuse).
func (s *Shell) CreateWorktreeForIssue(ctx context.Context, repo, n string, isPR bool, prBranch, prSHA string) (string, error) {
	owner, name, err := ownerRepo(repo, ctx, s)
	if err != nil {
		return "", err
	}

	if isPR {
		branch := fmt.Sprintf("pr-%s-review", n)
		path := filepath.Join(s.worktreeBase, owner, name, branch)

		if _, err := s.run(ctx, networkTimeout, repo, "fetch", "origin", fmt.Sprintf("pull/%s/head", n)); err != nil {
			return "", err
		}

		if prSHA != "" {
			if _, err := s.run(ctx, networkTimeout, repo, "worktree", "add", path, prSHA); err != nil {
				return "", err
			}
			if _, err := s.run(ctx, localTimeout, path, "checkout", "-b", branch, prSHA); err != nil {
				return "", err
			}
			return path, nil
		}

		if _, err := s.run(ctx, networkTimeout, repo, "fetch", "origin", fmt.Sprintf("pull/%s/head:%s", n, branch)); err != nil {
			return "", err
		}
		if _, err := s.run(ctx, networkTimeout, repo, "worktree", "add", path, branch); err != nil {
			return "", err
		}
		return path, nil
	}

	branch := fmt.Sprintf("issue-%s", n)
	path := filepath.Join(s.worktreeBase, owner, name, branch)

	if _, err := s.run(ctx, networkTimeout, repo, "worktree", "add", path, "-b", branch); err != nil {
		// Branch already exists: retry without -b to reuse it.
		if _, err2 := s.run(ctx, networkTimeout, repo, "worktree", "add", path, branch); err2 != nil {
			return "", err
		}
	}
	return path, nil
}

// RemoveWorktree removes a worktree and prunes its administrative files.
func (s *Shell) RemoveWorktree(ctx context.Context, repo, path string) error {
	if _, err := s.run(ctx, localTimeout, repo, "worktree", "remove", "--force", path); err != nil {
		return err
	}
	_, err := s.run(ctx, localTimeout, repo, "worktree", "prune")
	return err
}

// GetCanonicalRepoPath resolves the canonical repo for a worktree path by
// reading the ".git" file (a worktree's ".git" is a file, not a
// directory) and stripping the "/.git/worktrees/<name>" suffix from its
// "gitdir:" target.
func (s *Shell) GetCanonicalRepoPath(path string) (string, error) {
	gitFile := filepath.Join(path, ".git")
	data, err := os.ReadFile(gitFile)
	if err != nil {
		return "", fmt.Errorf("read .git file: %w", err)
	}

	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", errors.New("not a worktree: .git is not a gitdir pointer")
	}

	target := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	idx := strings.Index(target, "/.git/worktrees/")
	if idx < 0 {
		return "", errors.New("unrecognized worktree gitdir layout")
	}
	return target[:idx], nil
}

// IsWorktreePath reports whether path's ".git" entry is a file whose
// first line starts with "gitdir:" (the glossary's definition of
// "worktree").
func (s *Shell) IsWorktreePath(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil || info.IsDir() {
		return false
	}
	data, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(data)), "gitdir:")
}

// HasUncommittedChanges is fail-safe: unexpected errors report true (so
// callers never silently discard work), ENOENT reports false.
func (s *Shell) HasUncommittedChanges(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false
	}
	out, err := s.run(ctx, localTimeout, path, "status", "--porcelain")
	if err != nil {
		return true
	}
	return len(strings.TrimSpace(out)) > 0
}

// CommitAllChanges stages and commits everything in path. It returns
// false (no error) when there was nothing to commit.
func (s *Shell) CommitAllChanges(ctx context.Context, path, msg string) (bool, error) {
	if _, err := s.run(ctx, localTimeout, path, "add", "-A"); err != nil {
		return false, err
	}
	if !s.HasUncommittedChanges(ctx, path) {
		return false, nil
	}
	if _, err := s.run(ctx, localTimeout, path, "commit", "-m", msg); err != nil {
		return false, err
	}
	return true, nil
}

// IsBranchMerged checks ancestry against the remote's default branch via
// `git merge-base --is-ancestor`. exec's own exit-code semantics (1 means
// "not an ancestor", not a shell error) are distinguished from genuine
// failures by inspecting *exec.ExitError.
func (s *Shell) IsBranchMerged(ctx context.Context, repo, branch string) (bool, error) {
	defaultBranch, err := s.defaultBranch(ctx, repo)
	if err != nil {
		return false, err
	}

	cctx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "merge-base", "--is-ancestor", branch, "origin/"+defaultBranch)
	cmd.Dir = repo
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("git merge-base --is-ancestor %s origin/%s: %w", branch, defaultBranch, err)
	}
	return true, nil
}

func (s *Shell) defaultBranch(ctx context.Context, repo string) (string, error) {
	out, err := s.run(ctx, localTimeout, repo, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		return "main", nil
	}
	return strings.TrimPrefix(strings.TrimSpace(out), "origin/"), nil
}

func ownerRepo(canonicalPath string, ctx context.Context, s *Shell) (owner, name string, err error) {
	out, err := s.run(ctx, networkTimeout, canonicalPath, "remote", "get-url", "origin")
	if err != nil {
		return "", "", err
	}
	url := strings.TrimSpace(out)
	url = strings.TrimSuffix(url, ".git")

	var path string
	switch {
	case strings.Contains(url, "github.com:"):
		path = strings.SplitN(url, "github.com:", 2)[1]
	case strings.Contains(url, "github.com/"):
		path = strings.SplitN(url, "github.com/", 2)[1]
	default:
		return "unknown", filepath.Base(canonicalPath), nil
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return "unknown", filepath.Base(canonicalPath), nil
	}
	return parts[0], parts[1], nil
}
