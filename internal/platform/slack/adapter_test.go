package slack

import "testing"

func TestJoinConversationID_NoThreadIsJustChannel(t *testing.T) {
	if got := joinConversationID("C123", ""); got != "C123" {
		t.Fatalf("unexpected conversation id: %q", got)
	}
}

func TestJoinConversationID_WithThreadEncodesBoth(t *testing.T) {
	if got := joinConversationID("C123", "1620000000.000100"); got != "C123:1620000000.000100" {
		t.Fatalf("unexpected conversation id: %q", got)
	}
}

func TestSplitConversationID_RoundTripsJoin(t *testing.T) {
	channel, threadTS := splitConversationID("C123:1620000000.000100")
	if channel != "C123" || threadTS != "1620000000.000100" {
		t.Fatalf("unexpected split: channel=%q threadTS=%q", channel, threadTS)
	}
}

func TestSplitConversationID_NoThreadLeavesThreadTSEmpty(t *testing.T) {
	channel, threadTS := splitConversationID("C123")
	if channel != "C123" || threadTS != "" {
		t.Fatalf("unexpected split: channel=%q threadTS=%q", channel, threadTS)
	}
}
