package command

import (
	"fmt"
	"os"

	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/models"
)

// Invocation is a fully-resolved assistant-bound command: the rendered
// prompt to send and the commandName to record as Session.lastCommand.
type Invocation struct {
	Prompt      string
	CommandName string
}

// ErrNoSuchTemplate is returned by ResolveUnknown-style callers that need
// to distinguish "no such global template" from a real error.
var ErrNoSuchTemplate = fmt.Errorf("command: no such template")

// ResolveCommandInvoke implements the "command-invoke <name> [args...]"
// path of §4.K step 2: it requires codebase_id (checked by the caller),
// reads the named command's markdown file relative to cwd, substitutes,
// wraps, and appends issueContext after a "\n\n---\n\n" separator.
func ResolveCommandInvoke(cwd string, cb *models.Codebase, name string, args []string, issueContext string) (Invocation, error) {
	spec, ok := cb.Commands[name]
	if !ok {
		return Invocation{}, fmt.Errorf("command: no such command %q registered for codebase %s", name, cb.Name)
	}

	content, err := os.ReadFile(CommandFilePath(cwd, spec))
	if err != nil {
		return Invocation{}, fmt.Errorf("command: read %s: %w", spec.Path, err)
	}

	rendered := Substitute(string(content), args)
	prompt := Wrap(name, rendered)
	if issueContext != "" {
		prompt += "\n\n---\n\n" + issueContext
	}

	return Invocation{Prompt: prompt, CommandName: name}, nil
}

// ResolveUnknown implements the unknown-command fallback of §4.K step 2:
// look up a global template named after the unknown command word; if
// found, same substitution+wrap treatment; otherwise the caller should
// send the fixed "Unknown command" message.
func ResolveUnknown(templates *repositories.TemplateRepo, name string, args []string, issueContext string) (Invocation, error) {
	content, err := templates.Get(name)
	if err != nil {
		return Invocation{}, ErrNoSuchTemplate
	}

	rendered := Substitute(content, args)
	prompt := Wrap(name, rendered)
	if issueContext != "" {
		prompt += "\n\n---\n\n" + issueContext
	}

	return Invocation{Prompt: prompt, CommandName: name}, nil
}

// UnknownCommandMessage is the fixed fallback message when no template
// matches an unknown slash command.
func UnknownCommandMessage(name string) string {
	return fmt.Sprintf("Unknown command: /%s\n\nType /help for available commands or /templates for command templates.", name)
}

// IsDeterministic reports whether name is one of the fixed slash-command
// names CommandRouter handles without assistant invocation.
func IsDeterministic(name string) bool {
	return DeterministicNames[name]
}

// ParseSlash splits "/command rest of text" into command and the
// remaining args slice, mirroring splitCommand but exported for the
// orchestrator.
func ParseSlash(text string) (command string, args []string) {
	return splitCommand(text)
}
