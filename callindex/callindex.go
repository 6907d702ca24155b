// Package callindex indexes the static call graph of a module and answers
// "does this function transitively call something named like X" queries.
//
// Only calls with a statically resolved callee become edges. Queries track
// the current DFS path explicitly, so call cycles terminate:
//
//	A → B → C → A        Reaches(A, m) visits A, B, C once each
package callindex

import (
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// =============================================================================
// Graph
// =============================================================================

// Node is a function in the call graph.
type Node struct {
	Func *ir.Function
	Out  []*Edge
	In   []*Edge
}

// Edge is a resolved call site.
type Edge struct {
	Caller *Node
	Site   *ir.Instr
	Callee *Node
}

// Graph is the static call graph of a module.
type Graph struct {
	nodes map[*ir.Function]*Node
	order []*Node
	// Intrinsic matches functions that never start a Reaches query.
	Intrinsic pattern.Matcher
}

// Build indexes every function of mod and every resolved call site, in
// instruction order.
func Build(mod *ir.Module) *Graph {
	g := &Graph{nodes: make(map[*ir.Function]*Node), Intrinsic: pattern.Intrinsic}
	for _, fn := range mod.Funcs() {
		g.node(fn)
	}
	for _, fn := range mod.Funcs() {
		caller := g.nodes[fn]
		for instr := range fn.Instrs() {
			callee := instr.Callee()
			if callee == nil {
				continue
			}
			to := g.node(callee)
			e := &Edge{Caller: caller, Site: instr, Callee: to}
			caller.Out = append(caller.Out, e)
			to.In = append(to.In, e)
		}
	}
	return g
}

func (g *Graph) node(fn *ir.Function) *Node {
	if n, ok := g.nodes[fn]; ok {
		return n
	}
	n := &Node{Func: fn}
	g.nodes[fn] = n
	g.order = append(g.order, n)
	return n
}

// Node returns the node of fn, or nil if fn is not in the graph.
func (g *Graph) Node(fn *ir.Function) *Node { return g.nodes[fn] }

// Nodes returns every node in module order.
func (g *Graph) Nodes() []*Node { return g.order }

// Callees returns the distinct resolved callees of fn in call order.
func (g *Graph) Callees(fn *ir.Function) []*ir.Function {
	n := g.nodes[fn]
	if n == nil {
		return nil
	}
	seen := make(map[*Node]bool)
	var out []*ir.Function
	for _, e := range n.Out {
		if !seen[e.Callee] {
			seen[e.Callee] = true
			out = append(out, e.Callee.Func)
		}
	}
	return out
}

// =============================================================================
// Reachability Queries
// =============================================================================

// Reaches reports whether start, or anything it transitively calls, has a
// direct callee whose name matches m.
//
// A node's direct callees are checked first; then each callee that is
// neither start itself nor already on the current path is searched.
// Nodes proven not to reach m are remembered for the rest of the query.
func (g *Graph) Reaches(start *Node, m pattern.Matcher) bool {
	if start == nil || m == nil {
		return false
	}
	q := &reachQuery{m: m, onPath: map[*Node]bool{start: true}, exhausted: make(map[*Node]bool)}
	return q.search(start)
}

type reachQuery struct {
	m         pattern.Matcher
	onPath    map[*Node]bool
	exhausted map[*Node]bool
}

// frame is a node on the DFS path and the index of its next edge.
type frame struct {
	n    *Node
	next int
}

func (q *reachQuery) callsMatch(n *Node) bool {
	for _, e := range n.Out {
		if q.m.Match(e.Callee.Func.Name()) {
			return true
		}
	}
	return false
}

func (q *reachQuery) search(start *Node) bool {
	if q.callsMatch(start) {
		return true
	}
	path := []*frame{{n: start}}
	for len(path) > 0 {
		top := path[len(path)-1]
		if top.next == len(top.n.Out) {
			path = path[:len(path)-1]
			delete(q.onPath, top.n)
			q.exhausted[top.n] = true
			continue
		}
		callee := top.n.Out[top.next].Callee
		top.next++
		if callee == top.n || q.onPath[callee] || q.exhausted[callee] {
			continue
		}
		if q.callsMatch(callee) {
			return true
		}
		q.onPath[callee] = true
		path = append(path, &frame{n: callee})
	}
	return false
}

// FunctionReaches is Reaches seeded from fn's node. Intrinsics never reach
// anything.
func (g *Graph) FunctionReaches(fn *ir.Function, m pattern.Matcher) bool {
	if fn == nil || pattern.Match(g.Intrinsic, fn.Name()) {
		return false
	}
	return g.Reaches(g.nodes[fn], m)
}

// CallReaches reports whether call's callee matches m or reaches it.
// Calls to intrinsics only match directly.
func (g *Graph) CallReaches(call *ir.Instr, m pattern.Matcher) bool {
	callee := call.Callee()
	if callee == nil {
		return false
	}
	if pattern.Match(m, callee.Name()) {
		return true
	}
	return g.FunctionReaches(callee, m)
}
