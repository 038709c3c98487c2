// Package github implements platform.Adapter over a gin webhook endpoint
// and google/go-github, posting replies as issue/PR comments and
// authorizing senders against a case-insensitive username allowlist (§6).
package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/platform/auth"
)

// Event is a normalized inbound GitHub webhook event, already filtered to
// something the orchestrator can route (an issue/PR comment, or a
// conversation-opening issue/PR event).
type Event struct {
	ConversationID string // "<owner>/<repo>#<number>"
	Text           string
	IssueContext   string
	IsPullRequest  bool
	PRBranch       string
	PRSHA          string
	IsForkPR       bool
}

// Handler receives a normalized, already-authorized Event.
type Handler func(Event)

// Adapter posts replies via the REST API and exposes a gin handler for
// webhook delivery; it never polls.
type Adapter struct {
	client     *github.Client
	webhookKey string
	allowlist  auth.StringAllowlist
	handle     Handler
}

type Config struct {
	Token           string
	WebhookSecret   string
	AllowedUsers    string
}

func New(cfg Config) *Adapter {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	return &Adapter{
		client:     client,
		webhookKey: cfg.WebhookSecret,
		allowlist:  auth.ParseGitHubAllowlist(cfg.AllowedUsers),
	}
}

func (a *Adapter) SendMessage(ctx context.Context, conversationID, text string) error {
	owner, repo, number, err := splitConversationID(conversationID)
	if err != nil {
		return err
	}
	_, _, err = a.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &text})
	return err
}

func (a *Adapter) StreamingMode() platform.StreamingMode {
	return platform.StreamingModeBatch
}

func (a *Adapter) PlatformType() platform.Type {
	return platform.TypeGitHub
}

// EnsureThread is a no-op: a GitHub issue/PR thread is the conversation
// itself.
func (a *Adapter) EnsureThread(_ context.Context, originalConversationID string, _ *platform.ThreadContext) (string, error) {
	return originalConversationID, nil
}

// RegisterRoutes wires the webhook receiver onto a gin engine.
func (a *Adapter) RegisterRoutes(r *gin.Engine, handle Handler) {
	a.handle = handle
	r.POST("/webhooks/github", a.handleWebhook)
}

func (a *Adapter) handleWebhook(c *gin.Context) {
	payload, err := github.ValidatePayload(c.Request, []byte(a.webhookKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized event"})
		return
	}

	switch e := event.(type) {
	case *github.IssueCommentEvent:
		a.dispatchIssueComment(e)
	case *github.IssuesEvent:
		a.dispatchIssue(e)
	case *github.PullRequestEvent:
		a.dispatchPullRequest(e)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *Adapter) dispatchIssueComment(e *github.IssueCommentEvent) {
	if e.Sender == nil || e.Comment == nil || e.Issue == nil || e.Repo == nil {
		return
	}
	if !a.allowlist.Allows(e.Sender.GetLogin()) {
		logging.Info("[GitHub] rejected comment from unauthorized user %s", e.Sender.GetLogin())
		return
	}
	a.deliver(Event{
		ConversationID: conversationKey(e.Repo.GetOwner().GetLogin(), e.Repo.GetName(), e.Issue.GetNumber()),
		Text:           e.Comment.GetBody(),
		IssueContext:   issueContext(e.Issue),
		IsPullRequest:  e.Issue.IsPullRequest(),
	})
}

func (a *Adapter) dispatchIssue(e *github.IssuesEvent) {
	if e.GetAction() != "opened" || e.Sender == nil || e.Issue == nil || e.Repo == nil {
		return
	}
	if !a.allowlist.Allows(e.Sender.GetLogin()) {
		logging.Info("[GitHub] rejected issue from unauthorized user %s", e.Sender.GetLogin())
		return
	}
	a.deliver(Event{
		ConversationID: conversationKey(e.Repo.GetOwner().GetLogin(), e.Repo.GetName(), e.Issue.GetNumber()),
		Text:           e.Issue.GetBody(),
		IssueContext:   issueContext(e.Issue),
	})
}

func (a *Adapter) dispatchPullRequest(e *github.PullRequestEvent) {
	if e.GetAction() != "opened" || e.Sender == nil || e.PullRequest == nil || e.Repo == nil {
		return
	}
	if !a.allowlist.Allows(e.Sender.GetLogin()) {
		logging.Info("[GitHub] rejected PR from unauthorized user %s", e.Sender.GetLogin())
		return
	}
	pr := e.PullRequest
	a.deliver(Event{
		ConversationID: conversationKey(e.Repo.GetOwner().GetLogin(), e.Repo.GetName(), pr.GetNumber()),
		Text:           pr.GetBody(),
		IsPullRequest:  true,
		PRBranch:       pr.GetHead().GetRef(),
		PRSHA:          pr.GetHead().GetSHA(),
		IsForkPR:       pr.GetHead().GetRepo().GetFullName() != pr.GetBase().GetRepo().GetFullName(),
	})
}

func (a *Adapter) deliver(evt Event) {
	if a.handle == nil {
		return
	}
	a.handle(evt)
}

func issueContext(issue *github.Issue) string {
	kind := "Issue"
	if issue.IsPullRequest() {
		kind = "PR"
	}
	var labels []string
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	marker := "[GitHub Issue Context]"
	if issue.IsPullRequest() {
		marker = "[GitHub Pull Request Context]"
	}
	ctx := fmt.Sprintf("%s\n%s #%d: %q\n", marker, kind, issue.GetNumber(), issue.GetTitle())
	if len(labels) > 0 {
		ctx += fmt.Sprintf("Labels: %s\n", strings.Join(labels, ", "))
	}
	return ctx
}

func conversationKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

func splitConversationID(conversationID string) (owner, repo string, number int, err error) {
	ownerRepo, numStr, ok := strings.Cut(conversationID, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("github: malformed conversation id %q", conversationID)
	}
	owner, repo, ok = strings.Cut(ownerRepo, "/")
	if !ok {
		return "", "", 0, fmt.Errorf("github: malformed conversation id %q", conversationID)
	}
	number, err = strconv.Atoi(numStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("github: malformed conversation id %q: %w", conversationID, err)
	}
	return owner, repo, number, nil
}
