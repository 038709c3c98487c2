// Package auth implements the pure, adapter-level authorization helpers
// of §6: parsing the comma-separated allowlists each platform's
// credential env var carries, and testing a sender's id/username against
// the parsed list.
package auth

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	slackIDPattern   = regexp.MustCompile(`^[UW][A-Z0-9]+$`)
	discordIDPattern = regexp.MustCompile(`^\d+$`)
)

// NumericAllowlist parses a comma-separated list of numeric ids (Telegram,
// Discord, Slack share this shape before format-specific validation). An
// empty raw string means open access: every id is allowed.
type NumericAllowlist struct {
	ids map[int64]bool
}

// ParseNumericAllowlist splits raw on commas and keeps only non-zero
// positive integers; malformed or non-positive entries are skipped.
func ParseNumericAllowlist(raw string) NumericAllowlist {
	allow := NumericAllowlist{ids: map[int64]bool{}}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, err := strconv.ParseInt(entry, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		allow.ids[id] = true
	}
	return allow
}

// Allows reports whether id is authorized: open access if the allowlist
// is empty, else membership.
func (a NumericAllowlist) Allows(id int64) bool {
	if len(a.ids) == 0 {
		return true
	}
	return a.ids[id]
}

// StringAllowlist backs Discord/Slack id allowlists and the GitHub
// username allowlist, which compare formatted strings rather than raw
// integers.
type StringAllowlist struct {
	values map[string]bool
}

// ParseSlackAllowlist keeps only entries matching ^[UW][A-Z0-9]+$.
func ParseSlackAllowlist(raw string) StringAllowlist {
	return parseStringAllowlist(raw, slackIDPattern, false)
}

// ParseDiscordAllowlist keeps only entries matching ^\d+$.
func ParseDiscordAllowlist(raw string) StringAllowlist {
	return parseStringAllowlist(raw, discordIDPattern, false)
}

// ParseGitHubAllowlist trims and lowercases every entry; comparison is
// case-insensitive (§6).
func ParseGitHubAllowlist(raw string) StringAllowlist {
	return parseStringAllowlist(raw, nil, true)
}

func parseStringAllowlist(raw string, pattern *regexp.Regexp, lowercase bool) StringAllowlist {
	allow := StringAllowlist{values: map[string]bool{}}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if lowercase {
			entry = strings.ToLower(entry)
		}
		if pattern != nil && !pattern.MatchString(entry) {
			continue
		}
		allow.values[entry] = true
	}
	return allow
}

// Allows reports whether value is authorized, case-insensitively when the
// allowlist was built with lowercasing (GitHub); open access if empty.
func (a StringAllowlist) Allows(value string) bool {
	if len(a.values) == 0 {
		return true
	}
	return a.values[value] || a.values[strings.ToLower(value)]
}
