// Package ir is the program model the analysis kernel runs on.
//
// A Module holds Functions, a Function holds Blocks, a Block holds Instrs.
// Every Instr is also the Value it produces. Values track the instructions
// that consume them (their referrers), and the builder keeps that set the
// exact inverse of operand references:
//
//	t0 = load p          p.Referrers()  = [t0]
//	t1 = call f(t0, p)   t0.Referrers() = [t1]
//	                     p.Referrers()  = [t0 t1]
//	                     f.Referrers()  = [t1]
//
// A Module is built once and is read-only afterwards, so it can be shared by
// concurrent queries.
package ir

import (
	"fmt"
	"iter"
	"slices"
)

// =============================================================================
// Value
// =============================================================================

// Value is a single-assignment register: an instruction result, a function
// parameter, a constant, a global, or a function.
type Value interface {
	Name() string
	Type() *Type
	// Referrers returns the distinct instructions using this value as an
	// operand, in first-use order. The slice must not be modified.
	Referrers() []*Instr

	addUse(*Instr)
	removeUse(*Instr)
}

var (
	_ Value = (*Param)(nil)
	_ Value = (*Const)(nil)
	_ Value = (*Global)(nil)
	_ Value = (*Function)(nil)
	_ Value = (*Instr)(nil)
)

// node is the shared part of every Value.
type node struct {
	name string
	typ  *Type
	refs []*Instr
	uses map[*Instr]int // operand slots per referrer
}

func (n *node) Name() string        { return n.name }
func (n *node) Type() *Type         { return n.typ }
func (n *node) Referrers() []*Instr { return n.refs }

func (n *node) addUse(i *Instr) {
	if n.uses == nil {
		n.uses = make(map[*Instr]int)
	}
	if n.uses[i] == 0 {
		n.refs = append(n.refs, i)
	}
	n.uses[i]++
}

func (n *node) removeUse(i *Instr) {
	switch c := n.uses[i]; c {
	case 0:
	case 1:
		delete(n.uses, i)
		n.refs = slices.DeleteFunc(n.refs, func(r *Instr) bool { return r == i })
	default:
		n.uses[i] = c - 1
	}
}

// =============================================================================
// Non-instruction Values
// =============================================================================

// Param is a formal parameter of a function.
type Param struct {
	node
	fn    *Function
	index int
}

// Parent returns the function declaring p.
func (p *Param) Parent() *Function { return p.fn }

// Index returns p's position in the parameter list.
func (p *Param) Index() int { return p.index }

func (p *Param) String() string { return p.name }

// Const is a literal operand.
type Const struct {
	node
}

// NewConst returns a constant whose name is its literal text.
func NewConst(lit string, t *Type) *Const {
	return &Const{node{name: lit, typ: t}}
}

func (c *Const) String() string { return c.name }

// Global is a package-level variable. Its value is an address.
type Global struct {
	node
}

func (g *Global) String() string { return g.name }

// =============================================================================
// Module
// =============================================================================

// Module is the table of functions and globals of one program.
type Module struct {
	funcs   []*Function
	byName  map[string]*Function
	globals []*Global
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{byName: make(map[string]*Function)}
}

// Funcs returns all functions in declaration order.
func (m *Module) Funcs() []*Function { return m.funcs }

// Globals returns all globals in declaration order.
func (m *Module) Globals() []*Global { return m.globals }

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function { return m.byName[name] }

// NewFunction adds a function. Without blocks it is a declaration.
// Adding a name twice returns the existing function.
func (m *Module) NewFunction(name string, result *Type) *Function {
	if fn, ok := m.byName[name]; ok {
		return fn
	}
	if result == nil {
		result = Void
	}
	fn := &Function{
		node:   node{name: name, typ: PointerTo(Named("func"))},
		module: m,
		Result: result,
	}
	m.funcs = append(m.funcs, fn)
	m.byName[name] = fn
	return fn
}

// NewGlobal adds a global of type *t.
func (m *Module) NewGlobal(name string, t *Type) *Global {
	g := &Global{node{name: name, typ: PointerTo(t)}}
	m.globals = append(m.globals, g)
	return g
}

// =============================================================================
// Function
// =============================================================================

// Function is a named function. A function without blocks is a declaration
// (external code or an intrinsic).
type Function struct {
	node
	module *Module
	params []*Param
	blocks []*Block
	nextID int

	// Result is the result type; Void when the function returns nothing.
	Result *Type
	// File is the source file of the definition, if known.
	File string
}

// Module returns the module declaring fn.
func (fn *Function) Module() *Module { return fn.module }

// Params returns the formal parameters.
func (fn *Function) Params() []*Param { return fn.params }

// Param returns parameter i, or nil if out of range.
func (fn *Function) Param(i int) *Param {
	if i < 0 || i >= len(fn.params) {
		return nil
	}
	return fn.params[i]
}

// Blocks returns the basic blocks; Blocks()[0] is the entry.
func (fn *Function) Blocks() []*Block { return fn.blocks }

// Entry returns the entry block, or nil for declarations.
func (fn *Function) Entry() *Block {
	if len(fn.blocks) == 0 {
		return nil
	}
	return fn.blocks[0]
}

// IsDeclaration reports whether fn has no body.
func (fn *Function) IsDeclaration() bool { return len(fn.blocks) == 0 }

// Instrs iterates over every instruction in block order.
func (fn *Function) Instrs() iter.Seq[*Instr] {
	return func(yield func(*Instr) bool) {
		for _, b := range fn.blocks {
			for _, instr := range b.instrs {
				if !yield(instr) {
					return
				}
			}
		}
	}
}

// AddParam appends a formal parameter.
func (fn *Function) AddParam(name string, t *Type) *Param {
	p := &Param{node: node{name: name, typ: t}, fn: fn, index: len(fn.params)}
	fn.params = append(fn.params, p)
	return p
}

// NewBlock appends an empty basic block.
func (fn *Function) NewBlock() *Block {
	b := &Block{fn: fn, index: len(fn.blocks)}
	fn.blocks = append(fn.blocks, b)
	return b
}

func (fn *Function) String() string { return fn.name }

// =============================================================================
// Block
// =============================================================================

// Block is a basic block. Its terminator determines its successors.
type Block struct {
	fn     *Function
	index  int
	instrs []*Instr
	succs  []*Block
	preds  []*Block
}

// Parent returns the function containing b.
func (b *Block) Parent() *Function { return b.fn }

// Index returns b's position in its function.
func (b *Block) Index() int { return b.index }

// Instrs returns the instructions in order.
func (b *Block) Instrs() []*Instr { return b.instrs }

// Succs returns the successor blocks.
func (b *Block) Succs() []*Block { return b.succs }

// Preds returns the predecessor blocks.
func (b *Block) Preds() []*Block { return b.preds }

// Terminator returns the last instruction if it ends the block.
func (b *Block) Terminator() *Instr {
	if n := len(b.instrs); n > 0 && b.instrs[n-1].op.IsTerminator() {
		return b.instrs[n-1]
	}
	return nil
}

func (b *Block) String() string { return fmt.Sprintf("b%d", b.index) }

// AddSucc records a control-flow edge b → to. Branch, Jump and Switch call
// it; frontends that emit terminators with Emit call it directly.
func (b *Block) AddSucc(to *Block) {
	b.succs = append(b.succs, to)
	to.preds = append(to.preds, b)
}
