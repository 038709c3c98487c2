package github

import (
	"strings"
	"testing"

	gogithub "github.com/google/go-github/v74/github"
)

func TestConversationKey(t *testing.T) {
	got := conversationKey("acme", "widgets", 42)
	if got != "acme/widgets#42" {
		t.Fatalf("unexpected conversation key: %q", got)
	}
}

func TestSplitConversationID_RoundTripsConversationKey(t *testing.T) {
	owner, repo, number, err := splitConversationID("acme/widgets#42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "acme" || repo != "widgets" || number != 42 {
		t.Fatalf("unexpected split: owner=%q repo=%q number=%d", owner, repo, number)
	}
}

func TestSplitConversationID_RejectsMalformedInput(t *testing.T) {
	cases := []string{"no-hash-or-slash", "acme#42", "acme/widgets#not-a-number"}
	for _, c := range cases {
		if _, _, _, err := splitConversationID(c); err == nil {
			t.Fatalf("expected %q to be rejected as malformed", c)
		}
	}
}

func TestIssueContext_IssueRendersLabelsAndMarker(t *testing.T) {
	issue := &gogithub.Issue{
		Number: gogithub.Ptr(7),
		Title:  gogithub.Ptr("Login page crashes"),
		Labels: []*gogithub.Label{
			{Name: gogithub.Ptr("bug")},
			{Name: gogithub.Ptr("p1")},
		},
	}
	ctx := issueContext(issue)

	if want := "[GitHub Issue Context]"; !strings.Contains(ctx,want) {
		t.Fatalf("expected marker %q, got %q", want, ctx)
	}
	if want := `Issue #7: "Login page crashes"`; !strings.Contains(ctx,want) {
		t.Fatalf("expected %q, got %q", want, ctx)
	}
	if want := "Labels: bug, p1"; !strings.Contains(ctx,want) {
		t.Fatalf("expected %q, got %q", want, ctx)
	}
}

func TestIssueContext_PullRequestUsesPRMarker(t *testing.T) {
	issue := &gogithub.Issue{
		Number:      gogithub.Ptr(9),
		Title:       gogithub.Ptr("Add retries"),
		PullRequest: &gogithub.PullRequestLinks{},
	}
	ctx := issueContext(issue)

	if want := "[GitHub Pull Request Context]"; !strings.Contains(ctx,want) {
		t.Fatalf("expected PR marker, got %q", ctx)
	}
	if want := `PR #9: "Add retries"`; !strings.Contains(ctx,want) {
		t.Fatalf("expected %q, got %q", want, ctx)
	}
}
