// Package privilege flags functions that appear to gate behaviour on the
// identity of their caller.
//
// A function is privileged when its body calls an identity accessor (for
// example `env::predecessor_account_id`) and, anywhere in the same body, an
// identity equality comparison. No data-flow link between the two calls is
// required. Otherwise it is privileged when a resolved callee is, up to a
// depth bound:
//
//	fn owner_only(&self) {                 IsPrivileged(owner_only, 0) = true
//	    assert_eq!(env::predecessor_account_id(), self.owner);
//	}
//	fn withdraw(&mut self) {               IsPrivileged(withdraw, 0) = false
//	    self.owner_only();                 IsPrivileged(withdraw, 1) = true
//	}
package privilege

import (
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// DefaultDepth is the callee depth searched by default.
const DefaultDepth = 2

// Classifier decides whether functions are privileged.
type Classifier struct {
	// Accessor matches the caller identity accessor.
	Accessor pattern.Matcher
	// Equality matches the identity equality comparison.
	Equality pattern.Matcher
	// LibraryLocation matches source files whose instructions are skipped
	// when looking for the accessor and for callees. Instructions without a
	// location are skipped too. Nil disables location filtering.
	LibraryLocation pattern.Matcher
	// Assume reports functions that are privileged without inspection,
	// such as those marked by a directive. Callers of an assumed function
	// are found like callers of any other privileged function.
	Assume func(*ir.Function) bool
}

// NewClassifier returns a classifier with the built-in NEAR patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		Accessor:        pattern.PredecessorAccountID,
		Equality:        pattern.AccountIDEq,
		LibraryLocation: pattern.LibraryLocation,
	}
}

// IsPrivileged reports whether fn, or a resolved callee within depth levels,
// both reads and compares the caller identity. depth < 0 or a nil fn is
// false; depth 0 checks only fn's own body. Increasing depth never turns a
// true result false.
func (c *Classifier) IsPrivileged(fn *ir.Function, depth int) bool {
	q := &query{c: c, memo: make(map[key]bool)}
	return q.privileged(fn, depth)
}

type key struct {
	fn    *ir.Function
	depth int
}

// query holds per-call state. Results are memoised per (function, depth),
// which also bounds recursion through call cycles to depth levels.
type query struct {
	c    *Classifier
	memo map[key]bool
}

func (q *query) privileged(fn *ir.Function, depth int) bool {
	if fn == nil || depth < 0 {
		return false
	}
	if q.c.Assume != nil && q.c.Assume(fn) {
		return true
	}
	k := key{fn, depth}
	if got, ok := q.memo[k]; ok {
		return got
	}
	q.memo[k] = false
	got := q.scan(fn, depth)
	q.memo[k] = got
	return got
}

func (q *query) scan(fn *ir.Function, depth int) bool {
	for instr := range fn.Instrs() {
		if q.isLibrary(instr) {
			continue
		}
		callee := instr.Callee()
		if callee == nil {
			continue
		}
		if pattern.Match(q.c.Accessor, callee.Name()) {
			if q.callsEquality(fn) {
				return true
			}
			continue
		}
		if q.privileged(callee, depth-1) {
			return true
		}
	}
	return false
}

func (q *query) isLibrary(instr *ir.Instr) bool {
	if q.c.LibraryLocation == nil {
		return false
	}
	return !instr.Pos.IsValid() || q.c.LibraryLocation.Match(instr.Pos.File)
}

// callsEquality scans the whole body, library code included.
func (q *query) callsEquality(fn *ir.Function) bool {
	for instr := range fn.Instrs() {
		if callee := instr.Callee(); callee != nil && pattern.Match(q.c.Equality, callee.Name()) {
			return true
		}
	}
	return false
}
