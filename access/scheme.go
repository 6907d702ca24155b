package access

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mpyw/nearflow/pattern"
)

// ErrUnknownScheme is returned for a scheme id with no built-in rule table.
var ErrUnknownScheme = errors.New("unknown access scheme")

// Built-in scheme ids.
const (
	SchemeNear = "near"
	SchemeGo   = "go"
)

// NearRules classifies near_sdk collection methods and Rust helpers.
//
// Collection accessors map to Write, the same as mutators. A plain accessor
// reads; the mapping is kept so results stay comparable with earlier runs.
func NearRules() pattern.Table[Mode] {
	return pattern.Table[Mode]{
		{Matcher: pattern.CollectionMutation, Class: Write},
		{Matcher: pattern.CollectionAccessor, Class: Write},
		{Matcher: pattern.PointerDrop, Class: Read},
		{Matcher: pattern.Clone, Class: Read},
	}
}

// GoRules classifies Go builtins as lowered by the ssa frontend.
func GoRules() pattern.Table[Mode] {
	return pattern.Table[Mode]{
		{Matcher: pattern.MustRegexp(`^builtin\.(append|delete|clear)$`), Class: Write},
		{Matcher: pattern.MustRegexp(`^builtin\.(len|cap|print|println)$`), Class: Read},
		{Matcher: pattern.Any(pattern.Contains("Clone"), pattern.Contains("clone")), Class: Read},
	}
}

var schemes = map[string]func() pattern.Table[Mode]{
	SchemeNear: NearRules,
	SchemeGo:   GoRules,
}

// Schemes returns the known scheme ids, sorted.
func Schemes() []string {
	ids := make([]string, 0, len(schemes))
	for id := range schemes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Scheme returns the rule table registered under id.
func Scheme(id string) (pattern.Table[Mode], error) {
	rules, ok := schemes[id]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownScheme, id, Schemes())
	}
	return rules(), nil
}

// MustScheme is like Scheme but panics on an unknown id.
func MustScheme(id string) pattern.Table[Mode] {
	rules, err := Scheme(id)
	if err != nil {
		panic(err)
	}
	return rules
}
