// Package command implements CommandRouter (§4.G): the fixed set of
// deterministic slash commands, plus the two commands that interact with
// assistant invocation (command-invoke and the unknown-command fallback).
package command

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/models"
)

// DeterministicNames is the fixed set of slash commands CommandRouter
// handles without ever invoking the assistant (§4.K step 2).
var DeterministicNames = map[string]bool{
	"help": true, "status": true, "getcwd": true, "setcwd": true,
	"clone": true, "repos": true, "repo": true, "repo-remove": true,
	"reset": true, "reset-context": true, "command-set": true,
	"load-commands": true, "commands": true, "template-add": true,
	"template-list": true, "templates": true, "template-delete": true,
	"worktree": true, "workflow": true,
}

// Result is {message, modified} from §4.G: modified=true tells the
// orchestrator to reload the conversation.
type Result struct {
	Message  string
	Modified bool
}

// Router is the CommandRouter collaborator contract.
type Router struct {
	conversations *repositories.ConversationRepo
	codebases     *repositories.CodebaseRepo
	sessions      *repositories.SessionRepo
	templates     *repositories.TemplateRepo
}

func New(conversations *repositories.ConversationRepo, codebases *repositories.CodebaseRepo, sessions *repositories.SessionRepo, templates *repositories.TemplateRepo) *Router {
	return &Router{conversations: conversations, codebases: codebases, sessions: sessions, templates: templates}
}

// Handle dispatches a deterministic slash command. raw is the full text
// including the leading '/'; callers have already established that
// raw[0] == '/'.
func (r *Router) Handle(conv *models.Conversation, raw string) (Result, error) {
	name, args := splitCommand(raw)

	switch name {
	case "help":
		return Result{Message: helpText()}, nil

	case "status":
		return r.handleStatus(conv)

	case "getcwd":
		if conv.Cwd == nil {
			return Result{Message: "No cwd set for this conversation."}, nil
		}
		return Result{Message: *conv.Cwd}, nil

	case "setcwd":
		if len(args) == 0 {
			return Result{Message: "Usage: /setcwd <path>"}, nil
		}
		if err := r.conversations.Update(conv.ID, repositories.Fields{"cwd": args[0]}); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("cwd set to %s", args[0]), Modified: true}, nil

	case "clone", "repo":
		if len(args) == 0 {
			return Result{Message: "Usage: /" + name + " <codebase-name>"}, nil
		}
		return r.switchCodebase(conv, args[0])

	case "repos":
		return r.listCodebases()

	case "repo-remove":
		return Result{Message: "Repo removal is managed out of band by an operator."}, nil

	case "reset", "reset-context":
		return r.handleReset(conv)

	case "command-set", "load-commands":
		return Result{Message: "Commands are loaded from the codebase's command manifest; nothing to do here."}, nil

	case "commands":
		return r.listCommands(conv)

	case "template-add":
		return r.templateAdd(args)

	case "template-list", "templates":
		return r.templateList()

	case "template-delete":
		return r.templateDelete(args)

	case "worktree":
		return Result{Message: "Worktree management commands are handled by the isolation resolver's own reporting."}, nil

	case "workflow":
		return Result{Message: "Workflow routing is automatic once a .workflow.yaml file exists in cwd."}, nil
	}

	return Result{Message: fmt.Sprintf("Unknown command: /%s\n\nType /help for available commands or /templates for command templates.", name)}, nil
}

func (r *Router) handleStatus(conv *models.Conversation) (Result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\n", conv.PlatformType)
	if conv.CodebaseID != nil {
		cb, err := r.codebases.GetByID(*conv.CodebaseID)
		if err == nil {
			fmt.Fprintf(&b, "Codebase: %s\n", cb.Name)
		}
	} else {
		b.WriteString("Codebase: (none)\n")
	}
	if conv.Cwd != nil {
		fmt.Fprintf(&b, "cwd: %s\n", *conv.Cwd)
	}
	session, err := r.sessions.GetActiveByConversation(conv.ID)
	if err == nil {
		fmt.Fprintf(&b, "Active session: %d\n", session.ID)
	} else {
		b.WriteString("Active session: (none)\n")
	}
	return Result{Message: b.String()}, nil
}

func (r *Router) switchCodebase(conv *models.Conversation, name string) (Result, error) {
	cb, err := r.codebases.GetByName(name)
	if err == sql.ErrNoRows {
		return Result{Message: fmt.Sprintf("No known codebase named %q.", name)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if err := r.conversations.Update(conv.ID, repositories.Fields{
		"codebase_id":      cb.ID,
		"cwd":              cb.DefaultCwd,
		"isolation_env_id": nil,
	}); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Switched to %s.", cb.Name), Modified: true}, nil
}

func (r *Router) listCodebases() (Result, error) {
	cbs, err := r.codebases.List()
	if err != nil {
		return Result{}, err
	}
	if len(cbs) == 0 {
		return Result{Message: "No codebases configured."}, nil
	}
	var b strings.Builder
	b.WriteString("Available codebases:\n")
	for _, cb := range cbs {
		fmt.Fprintf(&b, "- %s\n", cb.Name)
	}
	return Result{Message: b.String()}, nil
}

func (r *Router) handleReset(conv *models.Conversation) (Result, error) {
	session, err := r.sessions.GetActiveByConversation(conv.ID)
	if err == nil {
		_ = r.sessions.Deactivate(session.ID)
	}
	if err := r.conversations.ClearIsolation(conv.ID, true); err != nil {
		return Result{}, err
	}
	return Result{Message: "Session and working copy reset. The next message starts fresh.", Modified: true}, nil
}

func (r *Router) listCommands(conv *models.Conversation) (Result, error) {
	if conv.CodebaseID == nil {
		return Result{Message: "No codebase configured."}, nil
	}
	cb, err := r.codebases.GetByID(*conv.CodebaseID)
	if err != nil {
		return Result{}, err
	}
	if len(cb.Commands) == 0 {
		return Result{Message: "No commands registered for this codebase."}, nil
	}
	var b strings.Builder
	for name, spec := range cb.Commands {
		fmt.Fprintf(&b, "- /%s — %s\n", name, spec.Description)
	}
	return Result{Message: b.String()}, nil
}

func (r *Router) templateAdd(args []string) (Result, error) {
	if len(args) < 2 {
		return Result{Message: "Usage: /template-add <name> <content...>"}, nil
	}
	name := args[0]
	content := strings.Join(args[1:], " ")
	if err := r.templates.Set(name, content); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Template %q saved.", name)}, nil
}

func (r *Router) templateList() (Result, error) {
	names, err := r.templates.List()
	if err != nil {
		return Result{}, err
	}
	if len(names) == 0 {
		return Result{Message: "No templates defined."}, nil
	}
	return Result{Message: "Templates:\n- " + strings.Join(names, "\n- ")}, nil
}

func (r *Router) templateDelete(args []string) (Result, error) {
	if len(args) == 0 {
		return Result{Message: "Usage: /template-delete <name>"}, nil
	}
	if err := r.templates.Delete(args[0]); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Template %q deleted.", args[0])}, nil
}

func helpText() string {
	return "Available commands: " + strings.Join(sortedNames(), ", ") +
		", command-invoke <name> [args...]. Type /templates to see saved templates."
}

func sortedNames() []string {
	names := make([]string, 0, len(DeterministicNames))
	for n := range DeterministicNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// splitCommand splits "/name arg1 arg2" into ("name", ["arg1", "arg2"]),
// per §4.K step 2 (split once on whitespace into command and args, then
// the args string is itself whitespace-split for commands that need
// positional access).
func splitCommand(raw string) (string, []string) {
	trimmed := strings.TrimPrefix(raw, "/")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// CommandFilePath resolves a registered command's markdown file relative
// to cwd (command-invoke, §4.K step 2).
func CommandFilePath(cwd string, spec models.CommandSpec) string {
	return filepath.Join(cwd, spec.Path)
}
