// Package pattern matches function names against configurable patterns.
//
// Detectors describe the functions they care about (identity accessors,
// collection mutators, comparison helpers, ...) as Matchers instead of
// hard-coded literals. An ordered Table maps matchers to a classification
// and answers with the first hit.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher reports whether a name matches.
type Matcher interface {
	Match(name string) bool
	String() string
}

// =============================================================================
// Matchers
// =============================================================================

type regexpMatcher struct{ re *regexp.Regexp }

// Regexp compiles an unanchored regular expression matcher.
func Regexp(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return regexpMatcher{re}, nil
}

// MustRegexp is like Regexp but panics on an invalid expression.
func MustRegexp(expr string) Matcher {
	m, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return m
}

func (m regexpMatcher) Match(name string) bool { return m.re.MatchString(name) }
func (m regexpMatcher) String() string         { return m.re.String() }

type containsMatcher string

// Contains matches names containing substr.
func Contains(substr string) Matcher { return containsMatcher(substr) }

func (m containsMatcher) Match(name string) bool { return strings.Contains(name, string(m)) }
func (m containsMatcher) String() string         { return "*" + string(m) + "*" }

type prefixMatcher string

// Prefix matches names starting with prefix.
func Prefix(prefix string) Matcher { return prefixMatcher(prefix) }

func (m prefixMatcher) Match(name string) bool { return strings.HasPrefix(name, string(m)) }
func (m prefixMatcher) String() string         { return string(m) + "*" }

type anyMatcher []Matcher

// Any matches names matched by at least one of ms. Nil entries are skipped.
func Any(ms ...Matcher) Matcher {
	var out anyMatcher
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (m anyMatcher) Match(name string) bool {
	for _, sub := range m {
		if sub.Match(name) {
			return true
		}
	}
	return false
}

func (m anyMatcher) String() string {
	parts := make([]string, len(m))
	for i, sub := range m {
		parts[i] = sub.String()
	}
	return strings.Join(parts, "|")
}

// Match is a nil-safe m.Match(name). A nil matcher matches nothing.
func Match(m Matcher, name string) bool {
	return m != nil && m.Match(name)
}

// =============================================================================
// Table
// =============================================================================

// Rule pairs a matcher with a classification.
type Rule[C any] struct {
	Matcher Matcher
	Class   C
}

// Table is an ordered list of rules. Earlier rules win.
type Table[C any] []Rule[C]

// Lookup returns the classification of the first rule matching name.
func (t Table[C]) Lookup(name string) (C, bool) {
	for _, r := range t {
		if Match(r.Matcher, name) {
			return r.Class, true
		}
	}
	var zero C
	return zero, false
}
