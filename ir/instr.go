package ir

import (
	"fmt"
	"strings"
)

// Position is a source location.
type Position struct {
	File string
	Line int
}

// IsValid reports whether the position carries a file or line.
func (p Position) IsValid() bool { return p.File != "" || p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// =============================================================================
// Instr
// =============================================================================

// Instr is an instruction and the value it produces. Instructions without a
// result have a Void type and an empty name.
//
// Operand layout by opcode:
//
//	call       [callee, args...]
//	load       [addr]
//	store      [value, addr]
//	fieldaddr  [base]            Field, Aggregate
//	cast       [x]
//	binop/cmp  [x, y]            Token
//	memcopy    [dst, src, len?]
//	br         [cond?]
//	switch     [x]
//	ret        [results...]
type Instr struct {
	node
	op       Op
	block    *Block
	operands []Value

	// Pos is the source location, zero when unknown.
	Pos Position
	// Field is the field index of a fieldaddr.
	Field int
	// Aggregate is the struct type a fieldaddr indexes into.
	Aggregate *Type
	// Token is the operator of a binop or cmp, e.g. "+" or "==".
	Token string
}

// Op returns the opcode kind.
func (i *Instr) Op() Op { return i.op }

// Block returns the enclosing block.
func (i *Instr) Block() *Block { return i.block }

// Parent returns the enclosing function.
func (i *Instr) Parent() *Function {
	if i.block == nil {
		return nil
	}
	return i.block.fn
}

// Operands returns the ordered operands. The slice must not be modified.
func (i *Instr) Operands() []Value { return i.operands }

// Operand returns operand n, or nil if out of range.
func (i *Instr) Operand(n int) Value {
	if n < 0 || n >= len(i.operands) {
		return nil
	}
	return i.operands[n]
}

// SetOperands replaces all operands, keeping referrer sets in sync.
// Nil operands are not allowed.
func (i *Instr) SetOperands(vals ...Value) {
	for _, old := range i.operands {
		old.removeUse(i)
	}
	i.operands = append(i.operands[:0:0], vals...)
	for _, v := range i.operands {
		v.addUse(i)
	}
}

// SetOperand replaces operand n.
func (i *Instr) SetOperand(n int, v Value) {
	i.operands[n].removeUse(i)
	i.operands[n] = v
	v.addUse(i)
}

// At sets the source location and returns i.
func (i *Instr) At(file string, line int) *Instr {
	i.Pos = Position{File: file, Line: line}
	return i
}

// =============================================================================
// Opcode-specific Accessors
// =============================================================================

// IsCall reports whether i is a call.
func (i *Instr) IsCall() bool { return i.op == OpCall }

// CalledValue returns the called operand of a call.
func (i *Instr) CalledValue() Value {
	if i.op != OpCall {
		return nil
	}
	return i.Operand(0)
}

// Callee returns the statically resolved callee of a call, or nil when the
// call is unresolved or i is not a call.
func (i *Instr) Callee() *Function {
	fn, _ := i.CalledValue().(*Function)
	return fn
}

// Args returns the actual arguments of a call.
func (i *Instr) Args() []Value {
	if i.op != OpCall || len(i.operands) == 0 {
		return nil
	}
	return i.operands[1:]
}

// Arg returns argument n of a call, or nil.
func (i *Instr) Arg(n int) Value {
	if i.op != OpCall {
		return nil
	}
	return i.Operand(n + 1)
}

// Addr returns the address operand of a load or store.
func (i *Instr) Addr() Value {
	switch i.op {
	case OpLoad:
		return i.Operand(0)
	case OpStore:
		return i.Operand(1)
	}
	return nil
}

// StoredValue returns the value written by a store.
func (i *Instr) StoredValue() Value {
	if i.op != OpStore {
		return nil
	}
	return i.Operand(0)
}

// Dst returns the destination operand of a memory copy.
func (i *Instr) Dst() Value {
	if i.op != OpMemCopy {
		return nil
	}
	return i.Operand(0)
}

// Src returns the source operand of a memory copy.
func (i *Instr) Src() Value {
	if i.op != OpMemCopy {
		return nil
	}
	return i.Operand(1)
}

// SourceType returns the operand type of a cast.
func (i *Instr) SourceType() *Type {
	if i.op != OpCast || len(i.operands) == 0 {
		return nil
	}
	return i.operands[0].Type()
}

func (i *Instr) String() string {
	var sb strings.Builder
	if i.name != "" {
		sb.WriteString(i.name)
		sb.WriteString(" = ")
	}
	sb.WriteString(i.op.String())
	if i.Token != "" {
		sb.WriteString(" " + i.Token)
	}
	for n, v := range i.operands {
		if n == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(v.Name())
	}
	if i.op == OpFieldAddr {
		fmt.Fprintf(&sb, " .%d", i.Field)
	}
	return sb.String()
}

// =============================================================================
// Builder
// =============================================================================

// Emit appends an instruction of the given kind and result type.
// Non-void results are named t0, t1, ... in function order.
func (b *Block) Emit(op Op, t *Type, operands ...Value) *Instr {
	if t == nil {
		t = Void
	}
	instr := &Instr{node: node{typ: t}, op: op, block: b}
	if !t.IsVoid() {
		instr.name = fmt.Sprintf("t%d", b.fn.nextID)
		b.fn.nextID++
	}
	instr.SetOperands(operands...)
	b.instrs = append(b.instrs, instr)
	return instr
}

// Load reads through addr.
func (b *Block) Load(addr Value) *Instr {
	t := addr.Type().Pointee()
	if t == nil {
		t = Opaque
	}
	return b.Emit(OpLoad, t, addr)
}

// Store writes val through addr.
func (b *Block) Store(val, addr Value) *Instr {
	return b.Emit(OpStore, Void, val, addr)
}

// FieldAddr computes the address of field index of the aggregate base
// points to. fieldType is the field's type; the result is *fieldType.
func (b *Block) FieldAddr(base Value, field int, fieldType *Type) *Instr {
	instr := b.Emit(OpFieldAddr, PointerTo(fieldType), base)
	instr.Field = field
	instr.Aggregate = base.Type().Pointee()
	return instr
}

// Cast reinterprets x as type to.
func (b *Block) Cast(x Value, to *Type) *Instr {
	return b.Emit(OpCast, to, x)
}

// Binary applies an arithmetic or bitwise operator.
func (b *Block) Binary(tok string, x, y Value) *Instr {
	instr := b.Emit(OpBinary, x.Type(), x, y)
	instr.Token = tok
	return instr
}

// Compare applies a comparison operator.
func (b *Block) Compare(tok string, x, y Value) *Instr {
	instr := b.Emit(OpCompare, Bool, x, y)
	instr.Token = tok
	return instr
}

// Call calls callee. The result type is the callee's result type when the
// callee is a *Function, Opaque otherwise.
func (b *Block) Call(callee Value, args ...Value) *Instr {
	t := Opaque
	if fn, ok := callee.(*Function); ok {
		t = fn.Result
	}
	return b.Emit(OpCall, t, append([]Value{callee}, args...)...)
}

// MemCopy copies memory from src to dst.
func (b *Block) MemCopy(dst, src Value, n ...Value) *Instr {
	return b.Emit(OpMemCopy, Void, append([]Value{dst, src}, n...)...)
}

// Branch ends b with a conditional branch.
func (b *Block) Branch(cond Value, then, els *Block) *Instr {
	instr := b.Emit(OpBranch, Void, cond)
	b.AddSucc(then)
	b.AddSucc(els)
	return instr
}

// Jump ends b with an unconditional branch.
func (b *Block) Jump(to *Block) *Instr {
	instr := b.Emit(OpBranch, Void)
	b.AddSucc(to)
	return instr
}

// Switch ends b with a multi-way branch on x.
func (b *Block) Switch(x Value, targets ...*Block) *Instr {
	instr := b.Emit(OpSwitch, Void, x)
	for _, t := range targets {
		b.AddSucc(t)
	}
	return instr
}

// Return ends b.
func (b *Block) Return(results ...Value) *Instr {
	return b.Emit(OpReturn, Void, results...)
}
