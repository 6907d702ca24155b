// Package frontend lowers go/ssa functions into the ir program model.
//
// # Mapping
//
//	ssa                                   ir
//	─────────────────────────────────────────────────────────────
//	call, static callee                   call of the callee function
//	call, builtin copy                    memcopy dst, src
//	call, other builtin                   call of "builtin.<name>"
//	call, dynamic or interface            call of the called value (unresolved)
//	go, defer                             call (void)
//	*p                                    load
//	store                                 store
//	&x.f                                  fieldaddr
//	conversions, interface wrapping       cast
//	==, !=, <, <=, >, >=                  compare
//	other binary operators                binop
//	if, jump                              br
//	return                                ret
//	everything else                       other
//
// Free variables of closures become trailing parameters, so call arguments
// keep lining up with parameter indices.
package frontend

import (
	"fmt"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/mpyw/nearflow/ir"
)

// =============================================================================
// Positions
// =============================================================================

// Positions relates lowered functions and instructions back to go/ssa and
// the file set.
type Positions struct {
	toIR   map[*ssa.Function]*ir.Function
	toSSA  map[*ir.Function]*ssa.Function
	instrs map[*ir.Instr]token.Pos
}

// Func returns the lowered form of fn, or nil.
func (p *Positions) Func(fn *ssa.Function) *ir.Function { return p.toIR[fn] }

// Source returns the ssa function fn was lowered from, or nil.
func (p *Positions) Source(fn *ir.Function) *ssa.Function { return p.toSSA[fn] }

// FuncPos returns the declaration position of fn.
func (p *Positions) FuncPos(fn *ir.Function) token.Pos {
	if src := p.toSSA[fn]; src != nil {
		return src.Pos()
	}
	return token.NoPos
}

// Pos returns the source position of instr.
func (p *Positions) Pos(instr *ir.Instr) token.Pos { return p.instrs[instr] }

// =============================================================================
// Build
// =============================================================================

// Build lowers fns into a new module. Functions referenced but not in fns
// become declarations.
func Build(fset *token.FileSet, fns []*ssa.Function) (*ir.Module, *Positions) {
	b := &builder{
		fset:    fset,
		mod:     ir.NewModule(),
		globals: make(map[*ssa.Global]*ir.Global),
		pos: &Positions{
			toIR:   make(map[*ssa.Function]*ir.Function),
			toSSA:  make(map[*ir.Function]*ssa.Function),
			instrs: make(map[*ir.Instr]token.Pos),
		},
	}
	for _, fn := range fns {
		b.declare(fn)
	}
	for _, fn := range fns {
		if len(fn.Blocks) > 0 {
			b.lowerBody(fn)
		}
	}
	return b.mod, b.pos
}

type builder struct {
	fset    *token.FileSet
	mod     *ir.Module
	types   typeutil.Map // types.Type -> *ir.Type
	globals map[*ssa.Global]*ir.Global
	pos     *Positions
}

// declare returns the ir function for fn, creating it with its parameters on
// first use.
func (b *builder) declare(fn *ssa.Function) *ir.Function {
	if got := b.pos.toIR[fn]; got != nil {
		return got
	}
	out := b.mod.NewFunction(fn.String(), b.typeOf(fn.Signature.Results()))
	b.pos.toIR[fn] = out
	b.pos.toSSA[out] = fn
	if p := fn.Pos(); p.IsValid() {
		out.File = b.fset.Position(p).Filename
	}

	if len(fn.Params) > 0 || len(fn.Blocks) > 0 {
		for _, p := range fn.Params {
			out.AddParam(p.Name(), b.typeOf(p.Type()))
		}
		for _, fv := range fn.FreeVars {
			out.AddParam(fv.Name(), b.typeOf(fv.Type()))
		}
		return out
	}

	// No body: take the parameters from the signature.
	sig := fn.Signature
	if recv := sig.Recv(); recv != nil {
		out.AddParam(recv.Name(), b.typeOf(recv.Type()))
	}
	for i := range sig.Params().Len() {
		p := sig.Params().At(i)
		out.AddParam(p.Name(), b.typeOf(p.Type()))
	}
	return out
}

func (b *builder) builtin(name string) *ir.Function {
	return b.mod.NewFunction("builtin."+name, ir.Opaque)
}

func (b *builder) global(g *ssa.Global) *ir.Global {
	if got, ok := b.globals[g]; ok {
		return got
	}
	elem := ir.Opaque
	if ptr, ok := types.Unalias(g.Type()).(*types.Pointer); ok {
		elem = b.typeOf(ptr.Elem())
	}
	out := b.mod.NewGlobal(g.String(), elem)
	b.globals[g] = out
	return out
}

// =============================================================================
// Types
// =============================================================================

// typeOf lowers t. Named types keep their package-qualified name, so
// *example.com/bank.Account lowers to a pointer to "example.com/bank.Account".
func (b *builder) typeOf(t types.Type) *ir.Type {
	if t == nil {
		return ir.Void
	}
	if got := b.types.At(t); got != nil {
		return got.(*ir.Type)
	}

	var out *ir.Type
	switch t := types.Unalias(t).(type) {
	case *types.Pointer:
		out = ir.PointerTo(b.typeOf(t.Elem()))
	case *types.Basic:
		out = basicType(t)
	case *types.Tuple:
		switch t.Len() {
		case 0:
			out = ir.Void
		case 1:
			out = b.typeOf(t.At(0).Type())
		default:
			out = ir.Named(t.String())
		}
	default:
		out = ir.Named(types.TypeString(t, nil))
	}
	b.types.Set(t, out)
	return out
}

func basicType(t *types.Basic) *ir.Type {
	info := t.Info()
	switch {
	case info&types.IsBoolean != 0:
		return ir.Bool
	case t.Kind() == types.Int:
		return ir.Int
	case info&types.IsInteger != 0:
		return &ir.Type{Tag: ir.TagInteger, Name: t.Name()}
	case info&types.IsFloat != 0:
		return &ir.Type{Tag: ir.TagFloat, Name: t.Name()}
	}
	return ir.Named(t.Name())
}

// =============================================================================
// Function Bodies
// =============================================================================

// funcBuilder lowers one function body.
type funcBuilder struct {
	*builder
	src    *ssa.Function
	fn     *ir.Function
	blocks []*ir.Block
	vals   map[ssa.Value]ir.Value
	phis   []pendingPhi
	undef  *ir.Const
}

// pendingPhi is a phi whose edges are filled in after every block is lowered.
type pendingPhi struct {
	instr *ir.Instr
	src   *ssa.Phi
}

func (b *builder) lowerBody(src *ssa.Function) {
	fb := &funcBuilder{
		builder: b,
		src:     src,
		fn:      b.declare(src),
		vals:    make(map[ssa.Value]ir.Value),
	}
	for i, p := range src.Params {
		fb.vals[p] = fb.fn.Param(i)
	}
	for i, fv := range src.FreeVars {
		fb.vals[fv] = fb.fn.Param(len(src.Params) + i)
	}
	for range src.Blocks {
		fb.blocks = append(fb.blocks, fb.fn.NewBlock())
	}

	// Dominator preorder defines every non-phi operand before its use.
	done := make(map[*ssa.BasicBlock]bool)
	for _, blk := range src.DomPreorder() {
		fb.lowerBlock(blk)
		done[blk] = true
	}
	for _, blk := range src.Blocks {
		if !done[blk] {
			fb.lowerBlock(blk)
		}
	}

	for _, p := range fb.phis {
		edges := make([]ir.Value, 0, len(p.src.Edges))
		for _, e := range p.src.Edges {
			edges = append(edges, fb.value(e))
		}
		p.instr.SetOperands(edges...)
	}
}

// value returns the lowered form of v. Values not lowered yet map to a
// shared undef constant.
func (fb *funcBuilder) value(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case *ssa.Function:
		return fb.declare(v)
	case *ssa.Builtin:
		return fb.builtin(v.Name())
	case *ssa.Global:
		return fb.global(v)
	case *ssa.Const:
		lit := "nil"
		if v.Value != nil {
			lit = v.Value.String()
		}
		return ir.NewConst(lit, fb.typeOf(v.Type()))
	}
	if got, ok := fb.vals[v]; ok {
		return got
	}
	if fb.undef == nil {
		fb.undef = ir.NewConst("undef", ir.Opaque)
	}
	return fb.undef
}

func (fb *funcBuilder) values(vs []ssa.Value) []ir.Value {
	out := make([]ir.Value, 0, len(vs))
	for _, v := range vs {
		out = append(out, fb.value(v))
	}
	return out
}

func (fb *funcBuilder) lowerBlock(src *ssa.BasicBlock) {
	blk := fb.blocks[src.Index]
	for _, instr := range src.Instrs {
		if _, ok := instr.(*ssa.DebugRef); ok {
			continue
		}
		out := fb.lowerInstr(blk, instr)
		if p := instr.Pos(); p.IsValid() {
			position := fb.fset.Position(p)
			out.At(position.Filename, position.Line)
			fb.pos.instrs[out] = p
		}
		if v, ok := instr.(ssa.Value); ok {
			fb.vals[v] = out
		}
	}
}

func (fb *funcBuilder) lowerInstr(blk *ir.Block, instr ssa.Instruction) *ir.Instr {
	switch instr := instr.(type) {
	case *ssa.Call:
		return fb.call(blk, instr.Common(), fb.typeOf(instr.Type()))
	case *ssa.Go:
		return fb.call(blk, instr.Common(), ir.Void)
	case *ssa.Defer:
		return fb.call(blk, instr.Common(), ir.Void)

	case *ssa.UnOp:
		if instr.Op == token.MUL {
			return blk.Load(fb.value(instr.X))
		}
		out := blk.Emit(ir.OpOther, fb.typeOf(instr.Type()), fb.value(instr.X))
		out.Token = instr.Op.String()
		return out

	case *ssa.Store:
		return blk.Store(fb.value(instr.Val), fb.value(instr.Addr))

	case *ssa.FieldAddr:
		field := ir.Opaque
		if ptr, ok := types.Unalias(instr.Type()).(*types.Pointer); ok {
			field = fb.typeOf(ptr.Elem())
		}
		return blk.FieldAddr(fb.value(instr.X), instr.Field, field)

	case *ssa.Convert:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.ChangeType:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.ChangeInterface:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.MakeInterface:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.SliceToArrayPointer:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.MultiConvert:
		return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
	case *ssa.TypeAssert:
		if !instr.CommaOk {
			return blk.Cast(fb.value(instr.X), fb.typeOf(instr.Type()))
		}

	case *ssa.BinOp:
		x, y := fb.value(instr.X), fb.value(instr.Y)
		switch instr.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			return blk.Compare(instr.Op.String(), x, y)
		}
		return blk.Binary(instr.Op.String(), x, y)

	case *ssa.If:
		succs := instr.Block().Succs
		return blk.Branch(fb.value(instr.Cond), fb.blocks[succs[0].Index], fb.blocks[succs[1].Index])
	case *ssa.Jump:
		return blk.Jump(fb.blocks[instr.Block().Succs[0].Index])
	case *ssa.Return:
		return blk.Return(fb.values(instr.Results)...)

	case *ssa.Phi:
		out := blk.Emit(ir.OpOther, fb.typeOf(instr.Type()))
		out.Token = "phi"
		fb.phis = append(fb.phis, pendingPhi{instr: out, src: instr})
		return out
	}
	return fb.other(blk, instr)
}

// other lowers any remaining instruction to an opaque instruction over its
// operands.
func (fb *funcBuilder) other(blk *ir.Block, instr ssa.Instruction) *ir.Instr {
	var ops []ir.Value
	for _, rand := range instr.Operands(nil) {
		if rand != nil && *rand != nil {
			ops = append(ops, fb.value(*rand))
		}
	}
	t := ir.Void
	if v, ok := instr.(ssa.Value); ok {
		t = fb.typeOf(v.Type())
	}
	out := blk.Emit(ir.OpOther, t, ops...)
	out.Token = strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", instr), "*ssa."))
	return out
}

func (fb *funcBuilder) call(blk *ir.Block, common *ssa.CallCommon, t *ir.Type) *ir.Instr {
	if b, ok := common.Value.(*ssa.Builtin); ok && b.Name() == "copy" && len(common.Args) == 2 {
		return blk.MemCopy(fb.value(common.Args[0]), fb.value(common.Args[1]))
	}

	var callee ir.Value
	if fn := common.StaticCallee(); fn != nil {
		callee = fb.declare(fn)
	} else {
		callee = fb.value(common.Value)
	}
	operands := append([]ir.Value{callee}, fb.values(common.Args)...)
	return blk.Emit(ir.OpCall, t, operands...)
}
