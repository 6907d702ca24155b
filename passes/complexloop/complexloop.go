// Package complexloop reports loops whose bodies exceed the configured number
// of instructions. Each iteration of such a loop costs gas, so a loop over
// data a caller can grow may make the method impossible to execute.
//
// The size bound is loops.min_instructions in the nearflow configuration.
// The pass result is a *handoff.Store with one "name@file@line..." record
// per function holding a reported loop.
package complexloop

import (
	"go/ast"
	"go/token"
	"path"
	"path/filepath"
	"reflect"
	"strconv"

	"golang.org/x/tools/go/analysis"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/handoff"
	"github.com/mpyw/nearflow/internal/directive"
	"github.com/mpyw/nearflow/internal/frontend"
	"github.com/mpyw/nearflow/ir"
)

// Analyzer reports large loops.
var Analyzer = &analysis.Analyzer{
	Name:       "complexloop",
	Doc:        "reports loops with more instructions than the configured bound",
	Requires:   []*analysis.Analyzer{nearflow.Analyzer},
	Run:        run,
	ResultType: reflect.TypeOf((*handoff.Store)(nil)),
}

func run(pass *analysis.Pass) (any, error) {
	res := pass.ResultOf[nearflow.Analyzer].(*nearflow.Result)
	k := res.Kernel

	var files []*ast.File
	for _, f := range pass.Files {
		if !ast.IsGenerated(f) {
			files = append(files, f)
		}
	}
	ignores := directive.BuildIgnores(pass.Fset, files)

	store := handoff.NewStore()
	for _, fn := range k.Module.Funcs() {
		src := res.Positions.Source(fn)
		if src == nil || fn.IsDeclaration() || ignores.FuncIgnored(src) {
			continue
		}
		var rec handoff.Record
		for _, l := range k.HeavyLoops(fn) {
			pos := loopPos(src.Syntax(), res.Positions, l)
			if !pos.IsValid() {
				pos = src.Pos()
			}
			if ignores.Suppressed(pos) {
				continue
			}
			pass.Reportf(pos, "loop with %d instructions in %s", l.Size(), src.Name())

			p := pass.Fset.Position(pos)
			if rec.Function == "" {
				rec = handoff.Record{
					Function: fn.Name(),
					Extra:    []string{path.Join(pass.Pkg.Path(), filepath.Base(p.Filename))},
				}
			}
			rec.Extra = append(rec.Extra, strconv.Itoa(p.Line))
		}
		if rec.Function != "" {
			store.Put(rec)
		}
	}
	return store, nil
}

// loopPos returns the position of the outermost loop statement of syntax
// holding an instruction of l. Phis carry the position of the variable they
// merge, which may lie before the loop, so statements are matched rather
// than taking the first located instruction.
func loopPos(syntax ast.Node, positions *frontend.Positions, l *ir.Loop) token.Pos {
	if syntax == nil {
		return token.NoPos
	}
	var stmts []ast.Stmt
	ast.Inspect(syntax, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return n == syntax
		case *ast.ForStmt, *ast.RangeStmt:
			stmts = append(stmts, n.(ast.Stmt))
			// Nested loops are inside the outer statement.
			return false
		}
		return true
	})

	best := token.NoPos
	for _, b := range l.Blocks {
		for _, instr := range b.Instrs() {
			p := positions.Pos(instr)
			if !p.IsValid() {
				continue
			}
			for _, s := range stmts {
				if s.Pos() <= p && p < s.End() && (!best.IsValid() || s.Pos() < best) {
					best = s.Pos()
				}
			}
		}
	}
	return best
}
