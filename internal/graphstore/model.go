package graphstore

import (
	"github.com/mpyw/nearflow/callindex"
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// FuncNode is an exported function.
type FuncNode struct {
	Name        string
	File        string
	Declaration bool
	Intrinsic   bool
	Privileged  bool
}

// CallEdge is an exported resolved call site.
type CallEdge struct {
	Caller string
	Callee string
	// Site is "file:line", or "-" when unknown.
	Site string
}

// Snapshot is the exported form of a call graph.
type Snapshot struct {
	Funcs []FuncNode
	Calls []CallEdge
}

// Collect flattens g. privileged marks functions found by the privilege
// query.
func Collect(g *callindex.Graph, privileged []*ir.Function) *Snapshot {
	isPrivileged := make(map[*ir.Function]bool, len(privileged))
	for _, fn := range privileged {
		isPrivileged[fn] = true
	}

	s := &Snapshot{}
	for _, n := range g.Nodes() {
		fn := n.Func
		s.Funcs = append(s.Funcs, FuncNode{
			Name:        fn.Name(),
			File:        fn.File,
			Declaration: fn.IsDeclaration(),
			Intrinsic:   pattern.Match(g.Intrinsic, fn.Name()),
			Privileged:  isPrivileged[fn],
		})
		for _, e := range n.Out {
			s.Calls = append(s.Calls, CallEdge{
				Caller: fn.Name(),
				Callee: e.Callee.Func.Name(),
				Site:   e.Site.Pos.String(),
			})
		}
	}
	return s
}
