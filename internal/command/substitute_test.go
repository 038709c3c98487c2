package command

import (
	"strings"
	"testing"
)

func TestSubstitute_Positional(t *testing.T) {
	got := Substitute("fix $1 in $2", []string{"bug-42", "main.go"})
	want := "fix bug-42 in main.go"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubstitute_Arguments(t *testing.T) {
	got := Substitute("run with: $ARGUMENTS", []string{"a", "b", "c"})
	want := "run with: a b c"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubstitute_EscapedDollarIsLiteral(t *testing.T) {
	got := Substitute(`price is \$5`, nil)
	want := "price is $5"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubstitute_MissingPositionalLeftVerbatim(t *testing.T) {
	got := Substitute("$1 and $4", []string{"only-one"})
	want := "only-one and $4"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWrap_RendersTemplateAroundContent(t *testing.T) {
	got := Wrap("deploy", "do the deploy steps")
	if !strings.Contains(got, "/deploy") || !strings.Contains(got, "do the deploy steps") {
		t.Fatalf("expected wrapper to mention the command name and the body, got %q", got)
	}
}
