package main

import "testing"

func TestSubstituteNamed_AppliesNamedBindingsThenPositionalArguments(t *testing.T) {
	body := "Review ${target} and address: $ARGUMENTS"
	got := substituteNamed(body, map[string]string{"target": "the auth module"}, "tighten session expiry")
	want := "Review the auth module and address: tighten session expiry"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubstituteNamed_NoBindingsStillAppliesArguments(t *testing.T) {
	got := substituteNamed("Fix: $ARGUMENTS", nil, "flaky test")
	want := "Fix: flaky test"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
