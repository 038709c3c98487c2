package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/archon-run/archon/internal/models"
)

var (
	titleRe  = regexp.MustCompile(`(?:Issue|PR) #\d+: "([^"]+)"`)
	labelsRe = regexp.MustCompile(`Labels: ([^\n]+)`)

	// invokeRe matches the sentinel line anywhere in the assistant's
	// combined text, at the start of the text or after a newline (§6).
	invokeRe = regexp.MustCompile(`(?:^|\n)/invoke-workflow\s+(\S+)`)
)

// ExtractRouterContext derives a models.RouterContext from issueContext
// (if given) or from text itself when it carries the GitHub context
// markers (§4.I). Missing title/labels are silently tolerated.
func ExtractRouterContext(platformType, text, issueContext string) models.RouterContext {
	source := issueContext
	if source == "" {
		source = text
	}

	ctx := models.RouterContext{
		PlatformType:  platformType,
		IsPullRequest: strings.Contains(source, "[GitHub Pull Request Context]"),
	}

	if m := titleRe.FindStringSubmatch(source); m != nil {
		ctx.Title = m[1]
	}
	if m := labelsRe.FindStringSubmatch(source); m != nil {
		for _, label := range strings.Split(m[1], ",") {
			if trimmed := strings.TrimSpace(label); trimmed != "" {
				ctx.Labels = append(ctx.Labels, trimmed)
			}
		}
	}

	return ctx
}

// BuildRouterPrompt renders the workflow-aware router prompt: the list of
// available workflows plus the extracted context, instructing the
// assistant to either answer conversationally or emit exactly one
// "/invoke-workflow <name>" directive.
func BuildRouterPrompt(userMessage string, defs []models.WorkflowDefinition, routerCtx models.RouterContext) string {
	var b strings.Builder

	b.WriteString("You are routing an incoming message to one of the following workflows, or answering it directly.\n\n")
	b.WriteString("Available workflows:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s — %s\n", d.Name, d.Description)
	}
	b.WriteString("\nIf one workflow clearly matches, respond with exactly one line of the form:\n/invoke-workflow <name>\nfollowed by a short human-readable preamble explaining what you're about to do. Otherwise, answer conversationally.\n\n")

	fmt.Fprintf(&b, "Platform: %s\n", routerCtx.PlatformType)
	if routerCtx.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", routerCtx.Title)
	}
	if len(routerCtx.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(routerCtx.Labels, ", "))
	}
	if routerCtx.WorkflowType != "" {
		fmt.Fprintf(&b, "Workflow type hint: %s\n", routerCtx.WorkflowType)
	}
	fmt.Fprintf(&b, "Is pull request: %v\n", routerCtx.IsPullRequest)
	if routerCtx.ThreadHistory != "" {
		fmt.Fprintf(&b, "\nThread history:\n%s\n", routerCtx.ThreadHistory)
	}

	b.WriteString("\n## Current Request\n\n")
	b.WriteString(userMessage)

	return b.String()
}

// Invocation is the parsed result of a detected "/invoke-workflow"
// directive: the preamble text to show the user and the matched
// definition to hand off to the workflow executor.
type Invocation struct {
	Workflow models.WorkflowDefinition
	Preamble string
}

// DetectInvocation scans the assistant's concatenated reply for the first
// "/invoke-workflow <name>" directive naming a known workflow. Unknown
// names are ignored (treated as conversational), per §4.I.
func DetectInvocation(reply string, reg *Registry) (*Invocation, bool) {
	loc := invokeRe.FindStringSubmatchIndex(reply)
	if loc == nil {
		return nil, false
	}

	name := reply[loc[2]:loc[3]]
	def, ok := reg.Lookup(name)
	if !ok {
		return nil, false
	}

	before := strings.TrimSpace(reply[:loc[0]])
	after := strings.TrimSpace(reply[loc[1]:])

	preamble := before
	if after != "" {
		if preamble != "" {
			preamble += "\n\n"
		}
		preamble += after
	}

	return &Invocation{Workflow: def, Preamble: preamble}, true
}
