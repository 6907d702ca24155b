// Package directive reads the //nearflow: comments that steer the passes.
//
// Two directives exist. //nearflow:ignore silences reports: on a statement
// line or the line above it, for a whole function when it sits in the
// function's doc comment, and for a whole file when it sits in the package
// doc comment. //nearflow:privileged, in a function's doc comment, declares
// that the function checks the caller identity even though the analysis
// cannot see it, for example because the check happens in the host:
//
//	//nearflow:privileged
//	func (c *Contract) assertOwner(e *Env) {
//	    c.host.RequireOwner(e)
//	}
//
// Line-level ignores that suppress nothing are reported by the passes that
// honour them, so stale directives do not pile up. A space after the slashes
// is accepted, and text after the directive name is a free-form reason.
package directive

import "strings"

const (
	namespace  = "nearflow:"
	ignore     = "ignore"
	privileged = "privileged"
)

// directiveName returns the directive named by comment text, or "".
func directiveName(text string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(strings.TrimPrefix(text, "//")), namespace)
	if !ok {
		return ""
	}
	if f := strings.Fields(rest); len(f) > 0 {
		return f[0]
	}
	return ""
}

// IsIgnoreDirective reports whether text is a //nearflow:ignore comment.
func IsIgnoreDirective(text string) bool { return directiveName(text) == ignore }

// IsPrivilegedDirective reports whether text is a //nearflow:privileged
// comment.
func IsPrivilegedDirective(text string) bool { return directiveName(text) == privileged }
