package telegram

import (
	"context"
	"strings"
	"testing"

	"github.com/archon-run/archon/internal/platform"
)

func TestSendMessage_RejectsNonNumericConversationID(t *testing.T) {
	a := &Adapter{}
	err := a.SendMessage(context.Background(), "not-a-chat-id", "hello")
	if err == nil {
		t.Fatalf("expected an error for a non-numeric conversation id")
	}
	if !strings.Contains(err.Error(), "not-a-chat-id") {
		t.Fatalf("expected the error to mention the offending id, got: %v", err)
	}
}

func TestPlatformType(t *testing.T) {
	a := &Adapter{}
	if a.PlatformType() != "telegram" {
		t.Fatalf("unexpected platform type: %q", a.PlatformType())
	}
}

func TestStreamingMode_IsStreamForIncrementalMessageEdits(t *testing.T) {
	a := &Adapter{}
	if got := a.StreamingMode(); got != platform.StreamingModeStream {
		t.Fatalf("expected StreamingModeStream, got %q", got)
	}
}
