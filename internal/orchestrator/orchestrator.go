// Package orchestrator implements the end-to-end message handler (§4.K):
// conversation load/inheritance, slash-command dispatch, isolation
// resolution, session selection, assistant streaming, and workflow
// hand-off, wired through a per-conversation ConversationLock.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/archon-run/archon/internal/artifactsync"
	"github.com/archon-run/archon/internal/assistant"
	"github.com/archon-run/archon/internal/classify"
	"github.com/archon-run/archon/internal/command"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/isolation"
	"github.com/archon-run/archon/internal/lock"
	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/models"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/workflow"
)

var tracer = otel.Tracer("archon.orchestrator")

// WorkflowExecutor hands a detected "/invoke-workflow" directive off to
// whatever runs YAML workflow steps. The executor owns its own error
// messaging (§4.I) — the core does not specify workflow execution itself.
type WorkflowExecutor interface {
	Execute(ctx context.Context, req WorkflowExecRequest)
}

// WorkflowExecRequest is the handoff payload to executeWorkflow (§4.I).
type WorkflowExecRequest struct {
	Platform             platform.Adapter
	ConversationID       string
	Cwd                  string
	Workflow             models.WorkflowDefinition
	OriginalMessage      string
	ConversationDBID     int64
	CodebaseID           int64
	IssueContext         string
	BranchName           string
	IsPRReview           bool
	PRSHA                string
	PRBranch             string
}

// Message is one inbound platform message, the Entry parameters of §4.K.
type Message struct {
	Platform             platform.Adapter
	ConversationID       string
	Text                 string
	IssueContext         string
	ThreadContext        string
	ParentConversationID string
	IsolationHints       *models.IsolationHints
}

// Orchestrator wires every collaborator named in §4 together and drives
// handleMessage through the ConversationLock.
type Orchestrator struct {
	repos     *repositories.Repositories
	lock      *lock.Lock
	git       gitservice.GitService
	resolver  *isolation.Resolver
	sync      *artifactsync.Syncer
	router    *command.Router
	assistant map[string]assistant.Client
	executor  WorkflowExecutor
	logger    *slog.Logger
}

func New(
	repos *repositories.Repositories,
	concurrencyLock *lock.Lock,
	git gitservice.GitService,
	resolver *isolation.Resolver,
	syncer *artifactsync.Syncer,
	router *command.Router,
	assistantClients map[string]assistant.Client,
	executor WorkflowExecutor,
) *Orchestrator {
	return &Orchestrator{
		repos:     repos,
		lock:      concurrencyLock,
		git:       git,
		resolver:  resolver,
		sync:      syncer,
		router:    router,
		assistant: assistantClients,
		executor:  executor,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Dispatch enqueues msg onto the ConversationLock; acquire never blocks
// the caller (§4.D L3).
func (o *Orchestrator) Dispatch(msg Message) {
	o.lock.Acquire(string(msg.Platform.PlatformType())+":"+msg.ConversationID, func() error {
		return o.handleMessage(context.Background(), msg)
	})
}

// log returns the request-scoped structured logger, falling back to
// slog.Default() for an Orchestrator built without New (e.g. in tests
// that exercise pump/pumpStream directly).
func (o *Orchestrator) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *Orchestrator) handleMessage(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "orchestrator.handleMessage")
	defer span.End()

	log := o.log().With("platform", string(msg.Platform.PlatformType()), "conversation_id", msg.ConversationID)
	log.Debug("handling message")

	// Step 1: conversation load & inheritance.
	conv, err := o.repos.Conversations.FindOrCreate(string(msg.Platform.PlatformType()), msg.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if msg.ParentConversationID != "" && conv.CodebaseID == nil {
		parent, err := o.repos.Conversations.FindOrCreate(string(msg.Platform.PlatformType()), msg.ParentConversationID)
		if err == nil {
			_ = o.repos.Conversations.InheritFromParent(conv.ID, parent.ID)
		}
		conv, err = o.repos.Conversations.Get(conv.ID)
		if err != nil {
			return fmt.Errorf("reload conversation: %w", err)
		}
	}

	o.repairStaleIsolation(conv)

	// Step 2: slash command parsing.
	if len(msg.Text) > 0 && msg.Text[0] == '/' {
		err := o.handleSlash(ctx, msg, conv)
		if err != nil {
			log.Error("slash command failed", "error", err)
		}
		return err
	}

	// Step 3-8: non-slash routing through isolation/session/streaming.
	err = o.handleConversational(ctx, msg, conv, "", "")
	if err != nil {
		log.Error("conversational routing failed", "error", err)
	}
	return err
}

// repairStaleIsolation implements the §4.C stale-reference repair step:
// best-effort, missing-row errors are swallowed.
func (o *Orchestrator) repairStaleIsolation(conv *models.Conversation) {
	if conv.IsolationEnvID == nil {
		return
	}
	env, err := o.repos.Environments.GetByID(*conv.IsolationEnvID)
	stale := errors.Is(err, sql.ErrNoRows) || (err == nil && !o.git.WorktreeExists(env.WorkingPath))
	if !stale {
		return
	}
	if err == nil {
		_ = o.repos.Environments.MarkDestroyed(env.ID)
	}
	_ = o.repos.Conversations.ClearIsolation(conv.ID, true)
}

func (o *Orchestrator) handleSlash(ctx context.Context, msg Message, conv *models.Conversation) error {
	name, args := command.ParseSlash(msg.Text)

	if command.IsDeterministic(name) {
		result, err := o.router.Handle(conv, msg.Text)
		if err != nil {
			cl := classify.Classify(err)
			return msg.Platform.SendMessage(ctx, msg.ConversationID, cl.UserMessage)
		}
		if err := msg.Platform.SendMessage(ctx, msg.ConversationID, result.Message); err != nil {
			return err
		}
		if result.Modified {
			_, err := o.repos.Conversations.Get(conv.ID)
			return err
		}
		return nil
	}

	if name == "command-invoke" {
		if conv.CodebaseID == nil {
			return msg.Platform.SendMessage(ctx, msg.ConversationID, "No codebase configured. Use /clone for a new repo or /repos to list your current repos you can switch to.")
		}
		if len(args) == 0 {
			return msg.Platform.SendMessage(ctx, msg.ConversationID, "Usage: /command-invoke <name> [args...]")
		}
		cb, err := o.repos.Codebases.GetByID(*conv.CodebaseID)
		if err != nil {
			return fmt.Errorf("load codebase: %w", err)
		}
		cwd := effectiveCwd(conv, cb)
		inv, err := command.ResolveCommandInvoke(cwd, cb, args[0], args[1:], msg.IssueContext)
		if err != nil {
			return msg.Platform.SendMessage(ctx, msg.ConversationID, fmt.Sprintf("Unknown command: /%s\n\nType /help for available commands or /templates for command templates.", args[0]))
		}
		return o.handleConversational(ctx, msg, conv, inv.Prompt, inv.CommandName)
	}

	// Unknown command: try a global template named after the command word.
	inv, err := command.ResolveUnknown(o.repos.Templates, name, args, msg.IssueContext)
	if err != nil {
		return msg.Platform.SendMessage(ctx, msg.ConversationID, command.UnknownCommandMessage(name))
	}
	return o.handleConversational(ctx, msg, conv, inv.Prompt, inv.CommandName)
}

// effectiveCwd implements §4.K step 3's cwd resolution: conversation.cwd
// if set, else codebase.default_cwd.
func effectiveCwd(conv *models.Conversation, cb *models.Codebase) string {
	if conv.Cwd != nil {
		return *conv.Cwd
	}
	return cb.DefaultCwd
}

// handleConversational implements §4.K steps 3-8 for any path that
// reaches the assistant: non-slash text, command-invoke, and the
// unknown-command template fallback. preRenderedPrompt/commandName are
// non-empty only for the command-invoke/template paths, which skip the
// workflow-router/raw-text prompt construction of step 3.
func (o *Orchestrator) handleConversational(ctx context.Context, msg Message, conv *models.Conversation, preRenderedPrompt, commandName string) error {
	if conv.CodebaseID == nil {
		return msg.Platform.SendMessage(ctx, msg.ConversationID, "No codebase configured. Use /clone for a new repo or /repos to list your current repos you can switch to.")
	}
	cb, err := o.repos.Codebases.GetByID(*conv.CodebaseID)
	if err != nil {
		return fmt.Errorf("load codebase: %w", err)
	}

	cwd := effectiveCwd(conv, cb)
	o.sync.Sync(cwd)

	var prompt string
	var reg *workflow.Registry
	var routerCtx models.RouterContext

	if preRenderedPrompt != "" {
		prompt = preRenderedPrompt
	} else {
		reg, err = workflow.Discover(cwd)
		if err != nil {
			logging.Error("[Orchestrator] workflow discovery: %v", err)
			reg = &workflow.Registry{}
		}

		routerCtx = workflow.ExtractRouterContext(string(msg.Platform.PlatformType()), msg.Text, msg.IssueContext)

		if !reg.Empty() {
			prompt = workflow.BuildRouterPrompt(msg.Text, reg.Definitions, routerCtx)
			commandName = "workflow-router"
		} else if tmpl, err := o.repos.Templates.Get("router"); err == nil {
			prompt = command.Substitute(tmpl, []string{msg.Text})
			prompt = command.Wrap("router", prompt)
			commandName = "router"
		} else {
			prompt = msg.Text
		}
	}

	// Step 4: thread context.
	if msg.ThreadContext != "" {
		prompt = fmt.Sprintf("## Thread Context (previous messages)\n\n%s\n\n---\n\n## Current Request\n\n%s", msg.ThreadContext, prompt)
	}

	// Step 5: isolation.
	isoResult, err := o.resolver.Resolve(ctx, cb, msg.Platform, msg.ConversationID, msg.IsolationHints)
	if errors.Is(err, isolation.Blocked) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve isolation: %w", err)
	}
	if err := o.repos.Conversations.Update(conv.ID, repositories.Fields{
		"cwd":              isoResult.Cwd,
		"isolation_env_id": isoResult.Environment.ID,
	}); err != nil {
		logging.Error("[Orchestrator] persist isolation: %v", err)
	}
	_ = o.repos.Conversations.TouchActivity(conv.ID)

	o.log().Debug("isolation resolved",
		"conversation_id", msg.ConversationID,
		"cwd", isoResult.Cwd,
		"new_isolation", isoResult.IsNewIsolation,
	)

	// Step 6: session selection.
	session, resumeToken, err := o.selectSession(conv, isoResult, commandName)
	if err != nil {
		return fmt.Errorf("select session: %w", err)
	}

	// Step 7: streaming/batching.
	client, ok := o.assistant[conv.AIAssistantType]
	if !ok {
		return msg.Platform.SendMessage(ctx, msg.ConversationID, "No assistant backend configured for this conversation.")
	}
	chunks, errs := client.SendQuery(ctx, prompt, isoResult.Cwd, resumeToken)

	resultSessionID, err := o.pump(ctx, msg, reg, isoResult, session, chunks)
	if err != nil {
		cl := classify.Classify(err)
		return msg.Platform.SendMessage(ctx, msg.ConversationID, cl.UserMessage)
	}
	if streamErr := <-errs; streamErr != nil {
		cl := classify.Classify(streamErr)
		return msg.Platform.SendMessage(ctx, msg.ConversationID, cl.UserMessage)
	}

	// Step 8: persistence of session state.
	if resultSessionID != "" {
		if err := o.repos.Sessions.PersistResumeToken(session.ID, resultSessionID); err != nil {
			logging.Error("[Orchestrator] persist resume token: %v", err)
		}
	}
	if commandName != "" {
		if err := o.repos.Sessions.SetLastCommand(session.ID, commandName); err != nil {
			logging.Error("[Orchestrator] persist lastCommand: %v", err)
		}
	}

	return nil
}

// selectSession implements §4.K step 6.
func (o *Orchestrator) selectSession(conv *models.Conversation, iso *isolation.Result, commandName string) (*models.Session, string, error) {
	active, err := o.repos.Sessions.GetActiveByConversation(conv.ID)
	hasActive := err == nil

	if iso.IsNewIsolation && hasActive {
		_ = o.repos.Sessions.Deactivate(active.ID)
		hasActive = false
	}

	if hasActive && (commandName == "execute" || commandName == "execute-github") {
		lastCommand := active.Metadata[models.MetaLastCommand]
		if (commandName == "execute" && lastCommand == "plan-feature") ||
			(commandName == "execute-github" && lastCommand == "plan-feature-github") {
			fresh, err := o.repos.Sessions.Rotate(conv.ID, *conv.CodebaseID, conv.AIAssistantType)
			if err != nil {
				return nil, "", err
			}
			return fresh, "", nil
		}
	}

	if !hasActive {
		fresh, err := o.repos.Sessions.Create(&models.Session{
			ConversationID:  conv.ID,
			CodebaseID:      *conv.CodebaseID,
			AIAssistantType: conv.AIAssistantType,
			Active:          true,
			Metadata:        map[string]string{},
		})
		if err != nil {
			return nil, "", err
		}
		return fresh, "", nil
	}

	resumeToken := ""
	if active.AssistantSessionID != nil {
		resumeToken = *active.AssistantSessionID
	}
	return active, resumeToken, nil
}

