package workflow

import (
	"strings"
	"testing"

	"github.com/archon-run/archon/internal/models"
)

func TestExtractRouterContext_ParsesIssueTitleAndLabels(t *testing.T) {
	issueContext := "[GitHub Pull Request Context]\nPR #42: \"Fix the login redirect\"\nLabels: bug, p1\n"
	ctx := ExtractRouterContext("github", "irrelevant text", issueContext)

	if !ctx.IsPullRequest {
		t.Fatalf("expected the PR context marker to be detected")
	}
	if ctx.Title != "Fix the login redirect" {
		t.Fatalf("unexpected title: %q", ctx.Title)
	}
	if len(ctx.Labels) != 2 || ctx.Labels[0] != "bug" || ctx.Labels[1] != "p1" {
		t.Fatalf("unexpected labels: %v", ctx.Labels)
	}
}

func TestExtractRouterContext_FallsBackToTextWhenNoIssueContext(t *testing.T) {
	ctx := ExtractRouterContext("slack", "just a normal message", "")
	if ctx.IsPullRequest {
		t.Fatalf("plain text must not be classified as a pull request")
	}
	if ctx.Title != "" || len(ctx.Labels) != 0 {
		t.Fatalf("expected no title/labels extracted from plain text")
	}
}

func TestBuildRouterPrompt_ListsWorkflowsAndContext(t *testing.T) {
	defs := []models.WorkflowDefinition{
		{Name: "fix-bug", Description: "fixes a reported bug"},
		{Name: "triage", Description: "triages an incoming issue"},
	}
	ctx := models.RouterContext{PlatformType: "telegram", Title: "Crash on startup"}

	prompt := BuildRouterPrompt("the app crashes on launch", defs, ctx)

	if !strings.Contains(prompt, "fix-bug — fixes a reported bug") {
		t.Fatalf("expected fix-bug to be listed, got: %s", prompt)
	}
	if !strings.Contains(prompt, "triage — triages an incoming issue") {
		t.Fatalf("expected triage to be listed, got: %s", prompt)
	}
	if !strings.Contains(prompt, "Title: Crash on startup") {
		t.Fatalf("expected the title to be rendered, got: %s", prompt)
	}
	if !strings.Contains(prompt, "the app crashes on launch") {
		t.Fatalf("expected the user message to be appended, got: %s", prompt)
	}
}

func TestDetectInvocation_MatchesKnownWorkflowAndSplitsPreamble(t *testing.T) {
	reg := &Registry{Definitions: []models.WorkflowDefinition{
		{Name: "fix-bug", Description: "fixes a reported bug"},
	}}

	reply := "I'll route this to the bug-fix workflow.\n/invoke-workflow fix-bug\nStarting now."
	inv, ok := DetectInvocation(reply, reg)
	if !ok {
		t.Fatalf("expected the directive to be detected")
	}
	if inv.Workflow.Name != "fix-bug" {
		t.Fatalf("expected the fix-bug workflow, got %q", inv.Workflow.Name)
	}
	if !strings.Contains(inv.Preamble, "route this") || !strings.Contains(inv.Preamble, "Starting now") {
		t.Fatalf("expected preamble to join before/after text, got %q", inv.Preamble)
	}
}

func TestDetectInvocation_UnknownWorkflowNameIsIgnored(t *testing.T) {
	reg := &Registry{Definitions: []models.WorkflowDefinition{
		{Name: "fix-bug", Description: "fixes a reported bug"},
	}}

	_, ok := DetectInvocation("/invoke-workflow nonexistent-workflow", reg)
	if ok {
		t.Fatalf("expected an unknown workflow name to be ignored")
	}
}

func TestDetectInvocation_NoDirectiveIsAMiss(t *testing.T) {
	reg := &Registry{Definitions: []models.WorkflowDefinition{{Name: "fix-bug"}}}
	_, ok := DetectInvocation("just a conversational answer", reg)
	if ok {
		t.Fatalf("expected no match when no directive is present")
	}
}
