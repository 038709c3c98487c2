// Package classify maps internal errors to safe, user-facing messages
// following the fixed substring taxonomy of the orchestrator spec.
package classify

import "strings"

// Kind is the error category assigned by Classify.
type Kind string

const (
	KindRateLimit Kind = "rate_limit"
	KindAuth      Kind = "auth"
	KindTimeout   Kind = "timeout"
	KindDatabase  Kind = "database"
	KindSession   Kind = "session"
	KindAssistant Kind = "assistant"
	KindShortSafe Kind = "short_safe"
	KindFallback  Kind = "fallback"
)

// Classification is the result of classifying an error: a Kind, a
// user-facing message, and whether the operation may be retried by the
// user.
type Classification struct {
	Kind          Kind
	UserMessage   string
	UserRetryable bool
}

var unsafeSubstrings = []string{"password", "token", "secret", "key="}

// Classify applies the first-match-wins substring taxonomy from the base
// spec's §7 error handling design.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindFallback, UserMessage: genericFallback}
	}
	msg := err.Error()

	switch {
	case containsAny(msg, "rate limit", "Rate limit"):
		return Classification{KindRateLimit, "AI rate limit reached. Please wait a moment and try again.", true}
	case containsAny(msg, "API key", "authentication", "401"):
		return Classification{KindAuth, "AI service authentication error. Please check configuration.", false}
	case containsAny(msg, "timeout", "ETIMEDOUT"):
		return Classification{KindTimeout, "Request timed out. Try again or use /reset.", true}
	case containsAny(msg, "ECONNREFUSED", "database"):
		return Classification{KindDatabase, "Database connection issue. Please try again in a moment.", true}
	case containsAny(msg, "session", "Session"):
		return Classification{KindSession, "Session error. Use /reset to start a fresh session.", true}
	case strings.Contains(msg, "Codex query failed:"):
		inner := strings.TrimSpace(strings.SplitN(msg, "Codex query failed:", 2)[1])
		return Classification{KindAssistant, "AI error: " + inner + ". Try /reset if issue persists.", true}
	case len(msg) > 0 && len(msg) < 100 && !containsAny(msg, unsafeSubstrings...):
		return Classification{KindShortSafe, "Error: " + msg + ". Try /reset if issue persists.", false}
	default:
		return Classification{Kind: KindFallback, UserMessage: genericFallback}
	}
}

const genericFallback = "An unexpected error occurred. Try /reset to start a fresh session."

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsolationErrorSuffix is appended to every isolation-creation error
// message regardless of sub-kind.
const IsolationErrorSuffix = " Execution blocked to prevent changes to shared codebase. Please resolve the issue and try again."

// IsolationErrorKind is the isolation-creation error sub-taxonomy, tested
// on the lowercased message.
type IsolationErrorKind string

const (
	IsolationPermissions IsolationErrorKind = "permissions"
	IsolationSlow        IsolationErrorKind = "slow"
	IsolationDiskFull    IsolationErrorKind = "disk_full"
	IsolationInvalid     IsolationErrorKind = "invalid_target"
	IsolationGeneric     IsolationErrorKind = "generic"
)

// ClassifyIsolationError maps an isolation-creation error to a sub-kind
// and a ready-to-send user message including the mandatory suffix.
func ClassifyIsolationError(err error) (IsolationErrorKind, string) {
	lower := strings.ToLower(err.Error())
	var kind IsolationErrorKind
	var reason string
	switch {
	case containsAny(lower, "permission denied", "eacces"):
		kind, reason = IsolationPermissions, "Permission denied while preparing the worktree."
	case strings.Contains(lower, "timeout"):
		kind, reason = IsolationSlow, "The operation timed out — the git host may be slow or unavailable."
	case containsAny(lower, "no space left", "enospc"):
		kind, reason = IsolationDiskFull, "The disk is full."
	case strings.Contains(lower, "not a git repository"):
		kind, reason = IsolationInvalid, "The target is not a valid git repository."
	default:
		kind, reason = IsolationGeneric, "Failed to prepare an isolated working copy."
	}
	return kind, reason + IsolationErrorSuffix
}
