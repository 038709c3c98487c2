package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/archon-run/archon/internal/assistant"
	"github.com/archon-run/archon/internal/isolation"
	"github.com/archon-run/archon/internal/models"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/platform/mock"
	"github.com/archon-run/archon/internal/workflow"
)

type recordingExecutor struct {
	requests []WorkflowExecRequest
}

func (r *recordingExecutor) Execute(_ context.Context, req WorkflowExecRequest) {
	r.requests = append(r.requests, req)
}

func chunks(cs ...assistant.Chunk) <-chan assistant.Chunk {
	ch := make(chan assistant.Chunk, len(cs))
	for _, c := range cs {
		ch <- c
	}
	close(ch)
	return ch
}

func TestLog_FallsBackToDefaultWhenBuiltWithoutNew(t *testing.T) {
	o := &Orchestrator{}
	if o.log() == nil {
		t.Fatalf("expected a non-nil logger even for a zero-value Orchestrator")
	}
}

func testIso() *isolation.Result {
	return &isolation.Result{
		Cwd: "/work/repo",
		Environment: &models.IsolationEnvironment{
			BranchName: "archon/test",
		},
	}
}

func testSession() *models.Session {
	return &models.Session{ID: 1, ConversationID: 10, CodebaseID: 20}
}

func TestPumpStream_SendsToolChunksImmediatelyThenAssistantText(t *testing.T) {
	o := &Orchestrator{}
	adapter := mock.New("")
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "hi"}

	ch := chunks(
		assistant.Chunk{Kind: assistant.ChunkTool, ToolName: "grep"},
		assistant.Chunk{Kind: assistant.ChunkAssistant, Content: "hello "},
		assistant.Chunk{Kind: assistant.ChunkAssistant, Content: "world"},
		assistant.Chunk{Kind: assistant.ChunkResult, SessionID: "sess-1"},
	)

	sessionID, err := o.pumpStream(context.Background(), msg, &workflow.Registry{}, testIso(), testSession(), ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionID != "sess-1" {
		t.Fatalf("expected sessionID sess-1, got %q", sessionID)
	}

	sent := adapter.Messages()
	if len(sent) != 3 {
		t.Fatalf("expected 3 sent messages, got %d: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "GREP") {
		t.Fatalf("expected tool chunk to be sent first, got %q", sent[0])
	}
	if sent[1] != "hello " || sent[2] != "world" {
		t.Fatalf("unexpected assistant chunk order: %v", sent)
	}
}

func TestPumpBatch_DropsToolIndicatorBlocksAndJoinsRest(t *testing.T) {
	o := &Orchestrator{}
	adapter := mock.New(platform.StreamingModeBatch)
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "hi"}

	ch := chunks(
		assistant.Chunk{Kind: assistant.ChunkAssistant, Content: "🔍 looked at files"},
		assistant.Chunk{Kind: assistant.ChunkAssistant, Content: "Here is the summary you asked for."},
		assistant.Chunk{Kind: assistant.ChunkResult, SessionID: "sess-2"},
	)

	sessionID, err := o.pumpBatch(context.Background(), msg, &workflow.Registry{}, testIso(), testSession(), ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionID != "sess-2" {
		t.Fatalf("expected sessionID sess-2, got %q", sessionID)
	}

	sent := adapter.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one batched message, got %d: %v", len(sent), sent)
	}
	if strings.Contains(sent[0], "looked at files") {
		t.Fatalf("expected tool-indicator block to be filtered out, got %q", sent[0])
	}
	if !strings.Contains(sent[0], "Here is the summary") {
		t.Fatalf("expected conversational block to survive filtering, got %q", sent[0])
	}
}

func TestPumpBatch_FallsBackWhenFilteringWouldDropEverything(t *testing.T) {
	o := &Orchestrator{}
	adapter := mock.New(platform.StreamingModeBatch)
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "hi"}

	ch := chunks(assistant.Chunk{Kind: assistant.ChunkAssistant, Content: "🔧 TOOL ONLY"})

	_, err := o.pumpBatch(context.Background(), msg, &workflow.Registry{}, testIso(), testSession(), ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := adapter.Messages()
	if len(sent) != 1 || sent[0] != "🔧 TOOL ONLY" {
		t.Fatalf("expected the unfiltered text as a fallback, got %v", sent)
	}
}

func TestDispatchWorkflowInvocation_HitSuppressesReplyAndHandsOff(t *testing.T) {
	exec := &recordingExecutor{}
	o := &Orchestrator{executor: exec}
	adapter := mock.New("")
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "please fix the bug"}

	reg := &workflow.Registry{Definitions: []models.WorkflowDefinition{
		{Name: "fix-bug", Description: "fixes a bug", Steps: []models.WorkflowStep{{Name: "plan", Command: "plan"}}},
	}}

	reply := "Routing you to the bug-fix workflow.\n/invoke-workflow fix-bug\nI'll get started now."
	suppressed := o.dispatchWorkflowInvocation(context.Background(), msg, reg, testIso(), testSession(), reply)
	if !suppressed {
		t.Fatalf("expected a matched workflow invocation to suppress the raw reply")
	}
	if len(exec.requests) != 1 {
		t.Fatalf("expected exactly one workflow execution request, got %d", len(exec.requests))
	}
	got := exec.requests[0]
	if got.Workflow.Name != "fix-bug" {
		t.Fatalf("expected the fix-bug workflow to be handed off, got %q", got.Workflow.Name)
	}
	if got.BranchName != "archon/test" {
		t.Fatalf("expected isolation branch name to be threaded through, got %q", got.BranchName)
	}

	sent := adapter.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one preamble message, got %v", sent)
	}
	if !strings.Contains(sent[0], "Routing you") || !strings.Contains(sent[0], "get started") {
		t.Fatalf("expected both before/after text joined into the preamble, got %q", sent[0])
	}
}

func TestDispatchWorkflowInvocation_MissLeavesReplyIntact(t *testing.T) {
	exec := &recordingExecutor{}
	o := &Orchestrator{executor: exec}
	adapter := mock.New("")
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "just chatting"}

	reg := &workflow.Registry{Definitions: []models.WorkflowDefinition{
		{Name: "fix-bug", Description: "fixes a bug"},
	}}

	suppressed := o.dispatchWorkflowInvocation(context.Background(), msg, reg, testIso(), testSession(), "No workflow applies here, just a normal answer.")
	if suppressed {
		t.Fatalf("expected no invocation directive to leave the reply unsuppressed")
	}
	if len(exec.requests) != 0 {
		t.Fatalf("expected no workflow execution requests, got %d", len(exec.requests))
	}
}

func TestDispatchWorkflowInvocation_NoRegistryNeverInvokes(t *testing.T) {
	exec := &recordingExecutor{}
	o := &Orchestrator{executor: exec}
	adapter := mock.New("")
	msg := Message{Platform: adapter, ConversationID: "c1", Text: "hi"}

	suppressed := o.dispatchWorkflowInvocation(context.Background(), msg, nil, testIso(), testSession(), "/invoke-workflow fix-bug")
	if suppressed {
		t.Fatalf("expected a nil registry to never suppress or invoke")
	}
	if len(exec.requests) != 0 {
		t.Fatalf("expected no workflow execution requests with a nil registry")
	}
}

func TestSummarizeToolInput_SortsKeysAndTruncates(t *testing.T) {
	summary := summarizeToolInput(map[string]any{"b": 2, "a": 1})
	if summary != "a=1 b=2" {
		t.Fatalf("expected keys sorted alphabetically, got %q", summary)
	}

	long := map[string]any{"path": strings.Repeat("x", maxToolSummaryLen+50)}
	summary = summarizeToolInput(long)
	if len(summary) != maxToolSummaryLen+len("…") {
		t.Fatalf("expected summary truncated to %d bytes plus the ellipsis, got length %d", maxToolSummaryLen, len(summary))
	}
	if !strings.HasSuffix(summary, "…") {
		t.Fatalf("expected truncated summary to end with an ellipsis, got %q", summary)
	}
}
