// Package template substitutes the ${var} / ${env.VAR} placeholders used
// in custom provider headers and notification messages (spec.md §6).
// No example repo carries a matching DSL, so this is hand-rolled on
// regexp/strings rather than reaching for a general templating library
// whose syntax ({{ }}) doesn't match the spec's ${ } convention.
package template

import (
	"os"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// sensitivePrefixes are environment-variable name fragments that
// ${env.VAR} refuses to resolve, per spec.md §6.
var sensitivePrefixes = []string{"AWS_", "GITHUB_"}

// sensitiveSubstrings additionally blocks any env var name containing
// these fragments, per the "*_SECRET*"/"*_KEY*" glob patterns in spec.md §6.
var sensitiveSubstrings = []string{"SECRET", "_KEY"}

// Vars is the set of named (non-env) substitutions available at a given
// call site; callers populate only the keys relevant to their context
// (e.g. a notification template has no ${client_ip}).
type Vars map[string]string

// Expand replaces every ${name} and ${env.NAME} placeholder in s. Unknown
// non-env names and denylisted env names are left as the literal,
// unresolved text.
func Expand(s string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]

		if rest, ok := strings.CutPrefix(name, "env."); ok {
			if isSensitiveEnvName(rest) {
				return match
			}
			if v, ok := os.LookupEnv(rest); ok {
				return v
			}
			return match
		}

		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

func isSensitiveEnvName(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	for _, substr := range sensitiveSubstrings {
		if strings.Contains(upper, substr) {
			return true
		}
	}
	return false
}
