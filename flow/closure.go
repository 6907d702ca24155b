// Package flow computes forward reachability over the definition-use graph.
//
// Closure follows every use edge, optionally threading values into callee
// parameters. Reach is bounded by depth and applies per-opcode rules so that
// tracked fields, comparisons and memory copies do not blow up the result.
//
// Both traversals use explicit worklists with a visited set, so cyclic
// def-use graphs (loops, recursion, stores feeding loads) terminate.
package flow

import (
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// =============================================================================
// Unrestricted Closure
// =============================================================================

// ClosureOptions configures Closure.
type ClosureOptions struct {
	// CrossFunction follows call arguments into callee parameters.
	CrossFunction bool
	// RestrictCrossFunction only enters parameter i when argument i is
	// itself in the closure.
	RestrictCrossFunction bool
	// Coercion matches the two-argument conversion shape.
	Coercion pattern.Matcher
}

// Closure returns every value reachable from seed through use edges.
//
// Rules applied to each value entered:
//   - label values are skipped
//   - store: its address is entered
//   - call: callee parameter i is entered for argument i when cross-function
//     traversal is enabled (restricted: only for arguments in the closure);
//     the coercion shape enters argument 0 once argument 1 is in the closure
//   - every referrer is entered
//
// The seed is always included unless it is a label. The result is a fixed
// point: Closure over any member adds nothing outside the result.
func Closure(seed ir.Value, opts ClosureOptions) *Set {
	c := &closure{opts: opts, visited: NewSet()}
	c.push(seed)
	c.run()
	return c.visited
}

type closure struct {
	opts     ClosureOptions
	visited  *Set
	worklist []ir.Value
}

func (c *closure) push(v ir.Value) {
	if v == nil || v.Type().IsLabel() || c.visited.Has(v) {
		return
	}
	c.worklist = append(c.worklist, v)
}

func (c *closure) run() {
	for len(c.worklist) > 0 {
		v := c.worklist[len(c.worklist)-1]
		c.worklist = c.worklist[:len(c.worklist)-1]
		if !c.visited.Add(v) {
			continue
		}

		if instr, ok := v.(*ir.Instr); ok {
			switch instr.Op() {
			case ir.OpCall:
				c.expandCall(instr)
			case ir.OpStore:
				c.push(instr.Addr())
			}
		}

		for _, user := range v.Referrers() {
			if c.visited.Has(user) {
				// A visited call gains edges when one of its arguments joins.
				if user.IsCall() {
					c.expandCall(user)
				}
				continue
			}
			c.push(user)
		}
	}
}

// expandCall pushes the edges of call that depend on the visited set.
func (c *closure) expandCall(call *ir.Instr) {
	callee := call.Callee()
	if callee == nil {
		return
	}
	args := call.Args()
	if c.opts.CrossFunction {
		for i, arg := range args {
			if c.opts.RestrictCrossFunction && !c.visited.Has(arg) {
				continue
			}
			if p := callee.Param(i); p != nil {
				c.push(p)
			}
		}
	}
	if (Patterns{Coercion: c.opts.Coercion}).isCoercion(call, c.visited) {
		c.push(args[0])
	}
}
