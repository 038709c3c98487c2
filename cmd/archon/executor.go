package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/archon-run/archon/internal/assistant"
	"github.com/archon-run/archon/internal/command"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/orchestrator"
)

// workflowExecutor drives a WorkflowDefinition's steps sequentially
// against the same assistant backend the conversation uses, posting each
// step's reply back to the originating platform. It implements
// orchestrator.WorkflowExecutor.
type workflowExecutor struct {
	codebases  *repositories.CodebaseRepo
	assistants map[string]assistant.Client
}

func newWorkflowExecutor(codebases *repositories.CodebaseRepo, assistants map[string]assistant.Client) *workflowExecutor {
	return &workflowExecutor{codebases: codebases, assistants: assistants}
}

// Execute runs req.Workflow's steps in the background; the orchestrator
// does not wait on it (§4's executor "owns its own error messaging").
func (w *workflowExecutor) Execute(ctx context.Context, req orchestrator.WorkflowExecRequest) {
	go w.run(ctx, req)
}

func (w *workflowExecutor) run(ctx context.Context, req orchestrator.WorkflowExecRequest) {
	cb, err := w.codebases.GetByID(req.CodebaseID)
	if err != nil {
		logging.Error("workflow %s: load codebase %d: %v", req.Workflow.Name, req.CodebaseID, err)
		w.notify(ctx, req, fmt.Sprintf("Could not start workflow %q: codebase unavailable.", req.Workflow.Name))
		return
	}

	client, ok := w.assistants[cb.AIAssistantType]
	if !ok {
		logging.Error("workflow %s: no assistant client for %q", req.Workflow.Name, cb.AIAssistantType)
		w.notify(ctx, req, fmt.Sprintf("Could not start workflow %q: no assistant configured.", req.Workflow.Name))
		return
	}

	for _, step := range req.Workflow.Steps {
		spec, ok := cb.Commands[step.Command]
		if !ok {
			logging.Error("workflow %s: step %s references unknown command %s", req.Workflow.Name, step.Name, step.Command)
			w.notify(ctx, req, fmt.Sprintf("Workflow %q stopped: step %q references unknown command %q.", req.Workflow.Name, step.Name, step.Command))
			return
		}

		content, err := os.ReadFile(command.CommandFilePath(req.Cwd, spec))
		if err != nil {
			logging.Error("workflow %s: read step %s command file: %v", req.Workflow.Name, step.Name, err)
			w.notify(ctx, req, fmt.Sprintf("Workflow %q stopped: could not read step %q.", req.Workflow.Name, step.Name))
			return
		}

		prompt := command.Wrap(step.Name, substituteNamed(string(content), step.With, req.OriginalMessage))

		reply, err := w.runStep(ctx, client, prompt, req.Cwd)
		if err != nil {
			logging.Error("workflow %s: step %s: %v", req.Workflow.Name, step.Name, err)
			w.notify(ctx, req, fmt.Sprintf("Workflow %q stopped during step %q: %v", req.Workflow.Name, step.Name, err))
			return
		}

		if strings.TrimSpace(reply) != "" {
			w.notify(ctx, req, fmt.Sprintf("**%s**\n\n%s", step.Name, reply))
		}
	}
}

func (w *workflowExecutor) runStep(ctx context.Context, client assistant.Client, prompt, cwd string) (string, error) {
	chunks, errs := client.SendQuery(ctx, prompt, cwd, "")
	var out strings.Builder

	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Kind == assistant.ChunkAssistant {
				out.WriteString(c.Content)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return out.String(), err
			}
		}
	}

	return out.String(), nil
}

func (w *workflowExecutor) notify(ctx context.Context, req orchestrator.WorkflowExecRequest, text string) {
	if err := req.Platform.SendMessage(ctx, req.ConversationID, text); err != nil {
		logging.Error("workflow %s: send message: %v", req.Workflow.Name, err)
	}
}

// substituteNamed applies a workflow step's "with" bindings (§4.H's
// per-step parameters) as ${key} replacements over a command body, then
// falls through to the $ARGUMENTS/$1.. convention (§6) against the
// original triggering message so a step with no explicit bindings still
// sees the user's request.
func substituteNamed(body string, with map[string]string, originalMessage string) string {
	for key, value := range with {
		body = strings.ReplaceAll(body, "${"+key+"}", value)
	}
	return command.Substitute(body, []string{originalMessage})
}
