package auth

import "testing"

func TestParseNumericAllowlist(t *testing.T) {
	allow := ParseNumericAllowlist("123, 456,789")

	if !allow.Allows(123) || !allow.Allows(456) || !allow.Allows(789) {
		t.Fatalf("expected listed ids to be allowed")
	}
	if allow.Allows(999) {
		t.Fatalf("expected unlisted id to be rejected")
	}
}

func TestParseNumericAllowlist_EmptyIsOpen(t *testing.T) {
	allow := ParseNumericAllowlist("")
	if !allow.Allows(1) || !allow.Allows(999999) {
		t.Fatalf("empty allowlist must allow everyone")
	}
}

func TestParseNumericAllowlist_IgnoresGarbage(t *testing.T) {
	allow := ParseNumericAllowlist("abc, 0, -5, 42")
	if !allow.Allows(42) {
		t.Fatalf("expected valid id to be kept")
	}
	if allow.Allows(0) {
		t.Fatalf("zero id must not be admitted")
	}
}

func TestParseSlackAllowlist(t *testing.T) {
	allow := ParseSlackAllowlist("U123ABC,W456DEF")
	if !allow.Allows("U123ABC") || !allow.Allows("W456DEF") {
		t.Fatalf("expected listed slack ids to be allowed")
	}
	if allow.Allows("U999XYZ") {
		t.Fatalf("expected unlisted slack id to be rejected")
	}
}

func TestParseDiscordAllowlist(t *testing.T) {
	allow := ParseDiscordAllowlist("111222333")
	if !allow.Allows("111222333") {
		t.Fatalf("expected listed discord id to be allowed")
	}
	if allow.Allows("444555666") {
		t.Fatalf("expected unlisted discord id to be rejected")
	}
}

func TestParseGitHubAllowlist_CaseInsensitive(t *testing.T) {
	allow := ParseGitHubAllowlist("Octocat,another-User")
	if !allow.Allows("octocat") || !allow.Allows("ANOTHER-USER") {
		t.Fatalf("expected github allowlist to be case-insensitive")
	}
	if allow.Allows("someone-else") {
		t.Fatalf("expected unlisted github user to be rejected")
	}
}

func TestParseGitHubAllowlist_EmptyIsOpen(t *testing.T) {
	allow := ParseGitHubAllowlist("")
	if !allow.Allows("anyone") {
		t.Fatalf("empty allowlist must allow everyone")
	}
}
