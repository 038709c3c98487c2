package classify

import (
	"errors"
	"testing"
)

func TestClassify_NilErrorIsFallback(t *testing.T) {
	c := Classify(nil)
	if c.Kind != KindFallback {
		t.Fatalf("expected KindFallback for a nil error, got %q", c.Kind)
	}
}

func TestClassify_RateLimit(t *testing.T) {
	c := Classify(errors.New("rate limit exceeded, slow down"))
	if c.Kind != KindRateLimit || !c.UserRetryable {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassify_Auth(t *testing.T) {
	c := Classify(errors.New("401 unauthorized: bad API key"))
	if c.Kind != KindAuth || c.UserRetryable {
		t.Fatalf("unexpected classification: %+v", c)
	}
}

func TestClassify_CodexQueryFailedExtractsInnerMessage(t *testing.T) {
	c := Classify(errors.New("Codex query failed: connection reset"))
	if c.Kind != KindAssistant {
		t.Fatalf("expected KindAssistant, got %q", c.Kind)
	}
	if c.UserMessage != "AI error: connection reset. Try /reset if issue persists." {
		t.Fatalf("unexpected message: %q", c.UserMessage)
	}
}

func TestClassify_ShortSafeMessagePassesThrough(t *testing.T) {
	c := Classify(errors.New("disk quota exceeded"))
	if c.Kind != KindShortSafe {
		t.Fatalf("expected KindShortSafe, got %q", c.Kind)
	}
	if c.UserMessage != "Error: disk quota exceeded. Try /reset if issue persists." {
		t.Fatalf("unexpected message: %q", c.UserMessage)
	}
}

func TestClassify_ShortButUnsafeFallsBackToGeneric(t *testing.T) {
	c := Classify(errors.New("leaked secret=abc123"))
	if c.Kind != KindFallback {
		t.Fatalf("expected an unsafe short message to fall back, got %q", c.Kind)
	}
}

func TestClassify_LongUnrecognizedMessageIsFallback(t *testing.T) {
	long := "an unusually long and unrecognized error message that exceeds the short-safe length threshold by a wide margin indeed"
	c := Classify(errors.New(long))
	if c.Kind != KindFallback {
		t.Fatalf("expected a long unrecognized message to fall back, got %q", c.Kind)
	}
}

func TestClassifyIsolationError_PermissionDenied(t *testing.T) {
	kind, msg := ClassifyIsolationError(errors.New("EACCES: permission denied"))
	if kind != IsolationPermissions {
		t.Fatalf("expected IsolationPermissions, got %q", kind)
	}
	if msg[len(msg)-len(IsolationErrorSuffix):] != IsolationErrorSuffix {
		t.Fatalf("expected the mandatory suffix to be appended, got %q", msg)
	}
}

func TestClassifyIsolationError_DiskFull(t *testing.T) {
	kind, _ := ClassifyIsolationError(errors.New("write failed: no space left on device"))
	if kind != IsolationDiskFull {
		t.Fatalf("expected IsolationDiskFull, got %q", kind)
	}
}

func TestClassifyIsolationError_GenericFallback(t *testing.T) {
	kind, _ := ClassifyIsolationError(errors.New("something unexpected happened"))
	if kind != IsolationGeneric {
		t.Fatalf("expected IsolationGeneric, got %q", kind)
	}
}
