package repositories

import (
	"path/filepath"
	"testing"

	"github.com/archon-run/archon/internal/db"
)

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "archon.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return New(database)
}

func insertCodebase(t *testing.T, repos *Repositories, name string) int64 {
	t.Helper()
	res, err := repos.Codebases.db.Exec(
		`INSERT INTO codebases (name, repository_url, default_cwd, ai_assistant_type) VALUES (?, ?, ?, ?)`,
		name, "https://github.com/acme/"+name, "/work/"+name, "claude",
	)
	if err != nil {
		t.Fatalf("insert codebase: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("codebase last insert id: %v", err)
	}
	return id
}

func TestConversationRepo_FindOrCreateIsIdempotent(t *testing.T) {
	repos := newTestRepositories(t)

	first, err := repos.Conversations.FindOrCreate("telegram", "chat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := repos.Conversations.FindOrCreate("telegram", "chat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same conversation row, got %d and %d", first.ID, second.ID)
	}

	other, err := repos.Conversations.FindOrCreate("discord", "chat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("expected a distinct conversation for a distinct platform")
	}
}

func TestCodebaseRepo_GetByNameAndByID(t *testing.T) {
	repos := newTestRepositories(t)
	id := insertCodebase(t, repos, "widgets")

	byName, err := repos.Codebases.GetByName("widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byName.ID != id {
		t.Fatalf("expected id %d, got %d", id, byName.ID)
	}

	byID, err := repos.Codebases.GetByID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID.Name != "widgets" {
		t.Fatalf("expected name widgets, got %q", byID.Name)
	}
	if byID.Commands == nil {
		t.Fatalf("expected an empty but non-nil commands map decoded from the default commands_json")
	}
}

func TestTemplateRepo_SetGetListDelete(t *testing.T) {
	repos := newTestRepositories(t)

	if err := repos.Templates.Set("router", "route this: $ARGUMENTS"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repos.Templates.Get("router")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "route this: $ARGUMENTS" {
		t.Fatalf("unexpected content: %q", got)
	}

	if err := repos.Templates.Set("router", "updated: $ARGUMENTS"); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}
	got, _ = repos.Templates.Get("router")
	if got != "updated: $ARGUMENTS" {
		t.Fatalf("expected overwrite to take effect, got %q", got)
	}

	names, err := repos.Templates.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "router" {
		t.Fatalf("unexpected template list: %v", names)
	}

	if err := repos.Templates.Delete("router"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repos.Templates.Get("router"); err == nil {
		t.Fatalf("expected an error after deleting the only template")
	}
}

func TestEnvironmentRepo_ListAndCountActiveByCodebase(t *testing.T) {
	repos := newTestRepositories(t)
	codebaseID := insertCodebase(t, repos, "acme-app")

	for i := 0; i < 3; i++ {
		if _, err := repos.Environments.db.Exec(
			`INSERT INTO isolation_environments
			 (codebase_id, workflow_type, workflow_id, working_path, branch_name, created_by_platform)
			 VALUES (?, 'issue', ?, ?, ?, 'telegram')`,
			codebaseID, i, "/work/acme-app/.worktrees/issue-"+string(rune('a'+i)), "issue-"+string(rune('a'+i)),
		); err != nil {
			t.Fatalf("insert environment %d: %v", i, err)
		}
	}

	count, err := repos.Environments.CountActiveByCodebase(codebaseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 active environments, got %d", count)
	}

	envs, err := repos.Environments.ListActiveByCodebase(codebaseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("expected 3 listed environments, got %d", len(envs))
	}
}
