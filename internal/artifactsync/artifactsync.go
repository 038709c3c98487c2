// Package artifactsync implements ArtifactSync (§4.J): keeping a
// worktree's copy of the orchestration metadata directory (".archon")
// fresh relative to the canonical repo it was branched from.
package artifactsync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/logging"
)

// metadataDirName is the orchestration metadata directory's name in the
// source repo.
const metadataDirName = ".archon"

// config is the subset of repo-local worktree configuration ArtifactSync
// reads: the copyFiles list, defaulting to [".archon"] with ".archon"
// always forced first.
type config struct {
	Worktree struct {
		CopyFiles []string `yaml:"copyFiles"`
	} `yaml:"worktree"`
}

// Syncer copies fresh metadata into worktrees, using GitService only to
// discover the canonical repo path for a given worktree.
type Syncer struct {
	git gitservice.GitService
}

func New(git gitservice.GitService) *Syncer {
	return &Syncer{git: git}
}

// Sync implements the §4.J contract: returns true iff a copy happened.
// Any non-ENOENT error is logged and false is returned — artifact-sync
// failures never propagate to the caller (§7.e).
func (s *Syncer) Sync(worktreePath string) bool {
	if !s.git.IsWorktreePath(worktreePath) {
		return false
	}

	canonical, err := s.git.GetCanonicalRepoPath(worktreePath)
	if err != nil {
		logging.Error("[ArtifactSync] resolve canonical repo for %s: %v", worktreePath, err)
		return false
	}

	canonicalMeta := filepath.Join(canonical, metadataDirName)
	canonicalInfo, err := os.Stat(canonicalMeta)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		logging.Error("[ArtifactSync] stat canonical metadata %s: %v", canonicalMeta, err)
		return false
	}

	worktreeMeta := filepath.Join(worktreePath, metadataDirName)
	if worktreeInfo, err := os.Stat(worktreeMeta); err == nil {
		if !worktreeInfo.ModTime().Before(canonicalInfo.ModTime()) {
			return false
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		logging.Error("[ArtifactSync] stat worktree metadata %s: %v", worktreeMeta, err)
		return false
	}

	copyFiles := loadCopyFiles(canonical)

	for _, entry := range copyFiles {
		src, dst := splitRename(entry)
		if err := copyTree(canonical, worktreePath, src, dst); err != nil {
			logging.Error("[ArtifactSync] copy %s: %v", entry, err)
			return false
		}
	}

	return true
}

// loadCopyFiles reads worktree.copyFiles from <canonical>/.archon/config.yaml
// (repo-local config), defaulting to [".archon"] and always forcing
// ".archon" to the front of the list.
func loadCopyFiles(canonical string) []string {
	cfg := config{}
	data, err := os.ReadFile(filepath.Join(canonical, metadataDirName, "config.yaml"))
	if err == nil {
		_ = yaml.Unmarshal(data, &cfg)
	}

	files := cfg.Worktree.CopyFiles
	if len(files) == 0 {
		files = []string{metadataDirName}
	}
	if files[0] != metadataDirName {
		filtered := []string{metadataDirName}
		for _, f := range files {
			if f != metadataDirName {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}
	return files
}

func splitRename(entry string) (src, dst string) {
	if idx := strings.Index(entry, " -> "); idx >= 0 {
		return entry[:idx], entry[idx+len(" -> "):]
	}
	return entry, entry
}

// copyTree copies srcRoot/src into dstRoot/dst recursively, rejecting any path
// component that would resolve outside its root via "..".
func copyTree(srcRoot, dstRoot, src, dst string) error {
	if err := validateRelative(src); err != nil {
		return err
	}
	if err := validateRelative(dst); err != nil {
		return err
	}

	srcPath := filepath.Join(srcRoot, src)
	dstPath := filepath.Join(dstRoot, dst)

	info, err := os.Stat(srcPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.IsDir() {
		return copyDir(srcPath, dstPath)
	}
	return copyFile(srcPath, dstPath, info.Mode())
}

func validateRelative(p string) error {
	cleaned := filepath.Clean(p)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("artifactsync: path %q escapes its root", p)
	}
	return nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcChild := filepath.Join(src, entry.Name())
		dstChild := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcChild, dstChild); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := copyFile(srcChild, dstChild, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
