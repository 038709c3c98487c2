package command

import (
	"fmt"
	"strings"
)

// assistantWrapperTemplate is the §6 wrapper placed around a
// command/template body before it is sent to the assistant.
const assistantWrapperTemplate = "The user invoked the `/%s` command. Execute the following instructions immediately without asking for confirmation:\n\n---\n\n%s\n\n---\n\nRemember: The user already decided to run this command. Take action now."

// Wrap renders the assistant-facing wrapper around a rendered command
// body (§6).
func Wrap(name, content string) string {
	return fmt.Sprintf(assistantWrapperTemplate, name, content)
}

// Substitute implements the §6 variable-substitution syntax: $1..$9
// positional, $ARGUMENTS = all args space-joined, \$ escapes to a literal
// $. Missing positionals are left verbatim (e.g. "$4" stays "$4" if only
// 2 args were given).
func Substitute(body string, args []string) string {
	var b strings.Builder
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == '$':
			b.WriteRune('$')
			i++
		case runes[i] == '$' && i+1 < len(runes) && runes[i+1] == 'A' && strings.HasPrefix(string(runes[i+1:]), "ARGUMENTS"):
			b.WriteString(strings.Join(args, " "))
			i += len("ARGUMENTS")
		case runes[i] == '$' && i+1 < len(runes) && runes[i+1] >= '1' && runes[i+1] <= '9':
			n := int(runes[i+1] - '0')
			if n <= len(args) {
				b.WriteString(args[n-1])
			} else {
				b.WriteRune('$')
				b.WriteRune(runes[i+1])
			}
			i++
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}
