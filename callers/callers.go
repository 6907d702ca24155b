// Package callers finds the syntactic callers of a function through the use
// edges of the function value.
package callers

import "github.com/mpyw/nearflow/ir"

// Direct returns the functions containing a call whose resolved callee is fn.
func Direct(fn *ir.Function) []*ir.Function {
	return Find(fn, 1)
}

// Find returns the callers of fn up to depth hops upward, in discovery
// order. Only calls with fn as callee count; passing fn as an argument does
// not. fn itself is included only when it is reachable from its own callers,
// as with recursion.
func Find(fn *ir.Function, depth int) []*ir.Function {
	if fn == nil || depth <= 0 {
		return nil
	}

	var found []*ir.Function
	seen := make(map[*ir.Function]bool)
	level := []*ir.Function{fn}
	for ; depth > 0 && len(level) > 0; depth-- {
		var next []*ir.Function
		for _, callee := range level {
			for _, caller := range direct(callee) {
				if seen[caller] {
					continue
				}
				seen[caller] = true
				found = append(found, caller)
				next = append(next, caller)
			}
		}
		level = next
	}
	return found
}

func direct(fn *ir.Function) []*ir.Function {
	var out []*ir.Function
	for _, user := range fn.Referrers() {
		if user.IsCall() && user.Callee() == fn {
			out = append(out, user.Parent())
		}
	}
	return out
}
