package router

import (
	"regexp"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// Matcher decides whether a routing rule applies to a request.
type Matcher interface {
	Match(req *normalized.Request) bool
}

// AlwaysMatcher matches every request.
type AlwaysMatcher struct{}

func (AlwaysMatcher) Match(*normalized.Request) bool { return true }

// ModelRegexMatcher matches when the request's model matches a regex.
type ModelRegexMatcher struct {
	Pattern *regexp.Regexp
}

// NewModelRegexMatcher compiles pattern into a ModelRegexMatcher.
func NewModelRegexMatcher(pattern string) (*ModelRegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &ModelRegexMatcher{Pattern: re}, nil
}

func (m *ModelRegexMatcher) Match(req *normalized.Request) bool {
	return m.Pattern.MatchString(req.Model)
}

// AllMatcher matches when every child matcher matches (composition,
// decided per SPEC_FULL.md's Open Question resolution — see DESIGN.md).
type AllMatcher struct {
	Matchers []Matcher
}

func All(matchers ...Matcher) *AllMatcher { return &AllMatcher{Matchers: matchers} }

func (m *AllMatcher) Match(req *normalized.Request) bool {
	for _, child := range m.Matchers {
		if !child.Match(req) {
			return false
		}
	}
	return true
}

// AnyMatcher matches when at least one child matcher matches.
type AnyMatcher struct {
	Matchers []Matcher
}

func Any(matchers ...Matcher) *AnyMatcher { return &AnyMatcher{Matchers: matchers} }

func (m *AnyMatcher) Match(req *normalized.Request) bool {
	for _, child := range m.Matchers {
		if child.Match(req) {
			return true
		}
	}
	return false
}

// Rule is one routing rule (spec.md §3 "Routing Rule").
type Rule struct {
	Priority  uint32 // lower evaluated first
	Name      string
	Matcher   Matcher
	Primary   string
	Fallbacks []string
}

// Candidates returns the ordered [primary, fallbacks...] list.
func (r Rule) Candidates() []string {
	out := make([]string, 0, 1+len(r.Fallbacks))
	out = append(out, r.Primary)
	return append(out, r.Fallbacks...)
}
