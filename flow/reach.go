package flow

import (
	"math"

	"github.com/mpyw/nearflow/ir"
)

// =============================================================================
// Bounded, Filtered Closure
// =============================================================================

const (
	// Unbounded disables the depth limit of Reach.
	Unbounded = math.MaxInt
	// AnyField makes Reach follow every field address.
	AnyField = -1
)

// ReachOptions configures Reach.
type ReachOptions struct {
	// MaxDepth is the number of hops, the seed included. Zero or less
	// reaches nothing.
	MaxDepth int
	// FieldOffset is the field index being chased, or AnyField.
	FieldOffset int
	Patterns    Patterns
}

// DefaultReachOptions returns unbounded, any-field options with the
// built-in patterns.
func DefaultReachOptions() ReachOptions {
	return ReachOptions{
		MaxDepth:    Unbounded,
		FieldOffset: AnyField,
		Patterns:    DefaultPatterns(),
	}
}

type hop struct {
	v     ir.Value
	depth int
}

// Reach returns the values reachable from seed under the bounded policy:
//
//	load, cast, 1-operand other  → referrers; a cast between an owner pair
//	                               stops when chasing a non-zero field
//	binop                        → referrers
//	fieldaddr                    → referrers if the index is FieldOffset,
//	                               FieldOffset is AnyField, or index 3 of an
//	                               owner pair
//	store                        → address
//	memcopy                      → referrers of the destination and of the
//	                               pre-cast destination
//	call                         → comparison stops; unpack stops when chasing
//	                               a field; coercion → argument 0; otherwise
//	                               every argument and every referrer
//	other instructions           → stop
//	params, globals, constants   → referrers
//
// Every hop costs one unit of depth and values are visited breadth-first,
// so each value is entered with the largest depth it can be reached with.
func Reach(seed ir.Value, opts ReachOptions) *Set {
	r := &reach{opts: opts, visited: NewSet()}
	if seed != nil {
		r.queue = append(r.queue, hop{seed, opts.MaxDepth})
	}
	for len(r.queue) > 0 {
		h := r.queue[0]
		r.queue = r.queue[1:]
		r.enter(h.v, h.depth)
	}
	return r.visited
}

type reach struct {
	opts    ReachOptions
	visited *Set
	queue   []hop
}

func (r *reach) chasingField() bool { return r.opts.FieldOffset != AnyField }

func (r *reach) push(v ir.Value, depth int) {
	if v == nil || r.visited.Has(v) {
		return
	}
	if depth != Unbounded {
		depth--
	}
	r.queue = append(r.queue, hop{v, depth})
}

func (r *reach) pushReferrers(v ir.Value, depth int) {
	for _, user := range v.Referrers() {
		r.push(user, depth)
	}
}

func (r *reach) enter(v ir.Value, depth int) {
	if depth <= 0 || v.Type().IsLabel() || !r.visited.Add(v) {
		return
	}

	instr, ok := v.(*ir.Instr)
	if !ok {
		r.pushReferrers(v, depth)
		return
	}

	pats := r.opts.Patterns
	switch instr.Op() {
	case ir.OpLoad, ir.OpCast:
		if instr.Op() == ir.OpCast && r.chasingField() && r.opts.FieldOffset != 0 &&
			pats.isOwnerPair(instr.SourceType(), instr.Type()) {
			return
		}
		r.pushReferrers(instr, depth)

	case ir.OpOther:
		if len(instr.Operands()) <= 1 {
			r.pushReferrers(instr, depth)
		}

	case ir.OpBinary:
		r.pushReferrers(instr, depth)

	case ir.OpFieldAddr:
		if r.followField(instr) {
			r.pushReferrers(instr, depth)
		}

	case ir.OpStore:
		r.push(instr.Addr(), depth)

	case ir.OpMemCopy:
		r.memCopy(instr.Operand(0), depth)

	case ir.OpCall:
		r.call(instr, depth)
	}
}

func (r *reach) followField(fa *ir.Instr) bool {
	if !r.chasingField() || fa.Field == r.opts.FieldOffset {
		return true
	}
	return fa.Field == 3 && r.opts.Patterns.isOwnerPair(fa.Aggregate, fa.Type().Pointee())
}

// memCopy enters the consumers of the destination and, when the destination
// is a cast, the consumers of the pointer it was cast from.
func (r *reach) memCopy(dst ir.Value, depth int) {
	if dst == nil {
		return
	}
	r.pushReferrers(dst, depth)
	if cast, ok := dst.(*ir.Instr); ok && cast.Op() == ir.OpCast {
		if orig := cast.Operand(0); orig != nil {
			r.pushReferrers(orig, depth)
		}
	}
}

func (r *reach) call(call *ir.Instr, depth int) {
	pats := r.opts.Patterns
	switch {
	case calleeMatches(call, pats.MemCopy):
		r.memCopy(call.Arg(0), depth)
	case calleeMatches(call, pats.Comparison):
	case r.chasingField() && calleeMatches(call, pats.Unpack):
	case pats.isCoercion(call, r.visited):
		r.push(call.Arg(0), depth)
	default:
		for _, arg := range call.Args() {
			r.push(arg, depth)
		}
		r.pushReferrers(call, depth)
	}
}
