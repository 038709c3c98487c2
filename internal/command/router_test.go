package command

import (
	"path/filepath"
	"testing"

	"github.com/archon-run/archon/internal/models"
)

func TestParseSlash_SplitsCommandAndArgs(t *testing.T) {
	name, args := ParseSlash("/setcwd /repo/path")
	if name != "setcwd" {
		t.Fatalf("expected command name setcwd, got %q", name)
	}
	if len(args) != 1 || args[0] != "/repo/path" {
		t.Fatalf("expected one arg /repo/path, got %v", args)
	}
}

func TestParseSlash_NoArgs(t *testing.T) {
	name, args := ParseSlash("/help")
	if name != "help" || len(args) != 0 {
		t.Fatalf("expected (help, []), got (%q, %v)", name, args)
	}
}

func TestIsDeterministic(t *testing.T) {
	if !IsDeterministic("help") {
		t.Fatalf("expected help to be deterministic")
	}
	if IsDeterministic("command-invoke") {
		t.Fatalf("command-invoke is assistant-bound, not deterministic")
	}
	if IsDeterministic("some-unregistered-word") {
		t.Fatalf("unregistered words must not be deterministic")
	}
}

func TestCommandFilePath_JoinsCwdAndSpecPath(t *testing.T) {
	got := CommandFilePath("/work/repo", models.CommandSpec{Path: "commands/deploy.md"})
	want := filepath.Join("/work/repo", "commands/deploy.md")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
