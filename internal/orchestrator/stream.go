package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/archon-run/archon/internal/assistant"
	"github.com/archon-run/archon/internal/isolation"
	"github.com/archon-run/archon/internal/models"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/workflow"
)

const toolEmoji = "🔧"

// batchFilterPrefixes is the fixed set of tool/thinking indicator emoji
// (§4.K step 7, batch mode) whose presence at the start of a block marks
// it as non-conversational output to drop.
var batchFilterPrefixes = []string{
	"🔧", // U+1F527
	"💭", // U+1F4AD
	"📝", // U+1F4DD
	"✏️", // U+270F U+FE0F
	"🗑️", // U+1F5D1 U+FE0F
	"📂", // U+1F4C2
	"🔍", // U+1F50D
}

const maxToolSummaryLen = 200

// pump drains chunks according to the originating adapter's streaming
// mode (§4.K step 7), handles workflow-invocation detection (§4.I), and
// returns the sessionID carried by the terminal result chunk.
func (o *Orchestrator) pump(
	ctx context.Context,
	msg Message,
	reg *workflow.Registry,
	iso *isolation.Result,
	session *models.Session,
	chunks <-chan assistant.Chunk,
) (string, error) {
	if msg.Platform.StreamingMode() == platform.StreamingModeBatch {
		return o.pumpBatch(ctx, msg, reg, iso, session, chunks)
	}
	return o.pumpStream(ctx, msg, reg, iso, session, chunks)
}

func (o *Orchestrator) pumpStream(
	ctx context.Context,
	msg Message,
	reg *workflow.Registry,
	iso *isolation.Result,
	session *models.Session,
	chunks <-chan assistant.Chunk,
) (string, error) {
	var assistantChunks []string
	sessionID := ""

	for c := range chunks {
		switch c.Kind {
		case assistant.ChunkTool:
			if err := msg.Platform.SendMessage(ctx, msg.ConversationID, formatToolChunk(c)); err != nil {
				return sessionID, err
			}
		case assistant.ChunkAssistant:
			assistantChunks = append(assistantChunks, c.Content)
		case assistant.ChunkResult:
			sessionID = c.SessionID
		case assistant.ChunkThinking:
			// not surfaced to the platform in either mode.
		}
	}

	combined := strings.Join(assistantChunks, "")
	if o.dispatchWorkflowInvocation(ctx, msg, reg, iso, session, combined) {
		return sessionID, nil
	}

	for _, chunk := range assistantChunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := msg.Platform.SendMessage(ctx, msg.ConversationID, chunk); err != nil {
			return sessionID, err
		}
	}
	return sessionID, nil
}

func (o *Orchestrator) pumpBatch(
	ctx context.Context,
	msg Message,
	reg *workflow.Registry,
	iso *isolation.Result,
	session *models.Session,
	chunks <-chan assistant.Chunk,
) (string, error) {
	var assistantChunks []string
	sessionID := ""

	for c := range chunks {
		switch c.Kind {
		case assistant.ChunkAssistant:
			assistantChunks = append(assistantChunks, c.Content)
		case assistant.ChunkTool:
			assistantChunks = append(assistantChunks, formatToolChunk(c))
		case assistant.ChunkResult:
			sessionID = c.SessionID
		case assistant.ChunkThinking:
		}
	}

	joined := strings.Join(assistantChunks, "\n\n---\n\n")
	cleaned := filterBatchBlocks(joined)

	if o.dispatchWorkflowInvocation(ctx, msg, reg, iso, session, cleaned) {
		return sessionID, nil
	}

	if strings.TrimSpace(cleaned) == "" {
		return sessionID, nil
	}
	return sessionID, msg.Platform.SendMessage(ctx, msg.ConversationID, cleaned)
}

// filterBatchBlocks drops blocks whose first non-whitespace rune is one
// of the fixed tool/thinking indicator emoji; falls back to the
// unfiltered text if filtering would remove everything.
func filterBatchBlocks(joined string) string {
	blocks := strings.Split(joined, "\n\n")
	kept := make([]string, 0, len(blocks))
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" || isToolIndicatorBlock(trimmed) {
			continue
		}
		kept = append(kept, block)
	}
	if len(kept) == 0 {
		return joined
	}
	return strings.Join(kept, "\n\n")
}

func isToolIndicatorBlock(block string) bool {
	for _, prefix := range batchFilterPrefixes {
		if strings.HasPrefix(block, prefix) {
			return true
		}
	}
	return false
}

// dispatchWorkflowInvocation checks reply for a "/invoke-workflow"
// directive; if found, sends the preamble and hands off to the
// WorkflowExecutor, returning true to tell the caller to suppress the
// rest of the reply.
func (o *Orchestrator) dispatchWorkflowInvocation(
	ctx context.Context,
	msg Message,
	reg *workflow.Registry,
	iso *isolation.Result,
	session *models.Session,
	reply string,
) bool {
	if reg == nil || reg.Empty() || o.executor == nil {
		return false
	}
	inv, found := workflow.DetectInvocation(reply, reg)
	if !found {
		return false
	}

	if inv.Preamble != "" {
		_ = msg.Platform.SendMessage(ctx, msg.ConversationID, inv.Preamble)
	}

	o.executor.Execute(ctx, WorkflowExecRequest{
		Platform:         msg.Platform,
		ConversationID:   msg.ConversationID,
		Cwd:              iso.Cwd,
		Workflow:         inv.Workflow,
		OriginalMessage:  msg.Text,
		ConversationDBID: session.ConversationID,
		CodebaseID:       session.CodebaseID,
		IssueContext:     msg.IssueContext,
		BranchName:       iso.Environment.BranchName,
		IsPRReview:       msg.IsolationHints != nil && msg.IsolationHints.PRBranch != "",
		PRSHA:            hintsPRSHA(msg.IsolationHints),
		PRBranch:         hintsPRBranch(msg.IsolationHints),
	})
	return true
}

func hintsPRSHA(h *models.IsolationHints) string {
	if h == nil {
		return ""
	}
	return h.PRSHA
}

func hintsPRBranch(h *models.IsolationHints) string {
	if h == nil {
		return ""
	}
	return h.PRBranch
}

func formatToolChunk(c assistant.Chunk) string {
	name := strings.ToUpper(c.ToolName)
	summary := summarizeToolInput(c.ToolInput)
	if summary == "" {
		return fmt.Sprintf("%s %s", toolEmoji, name)
	}
	return fmt.Sprintf("%s %s\n%s", toolEmoji, name, summary)
}

func summarizeToolInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, input[k]))
	}
	summary := strings.Join(parts, " ")
	if len(summary) > maxToolSummaryLen {
		summary = summary[:maxToolSummaryLen] + "…"
	}
	return summary
}
