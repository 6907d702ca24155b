package flow

import (
	"iter"

	"github.com/mpyw/nearflow/ir"
)

// Set is an insertion-ordered set of values.
type Set struct {
	vals []ir.Value
	has  map[ir.Value]bool
}

// NewSet returns a set holding vals.
func NewSet(vals ...ir.Value) *Set {
	s := &Set{has: make(map[ir.Value]bool, len(vals))}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was absent.
func (s *Set) Add(v ir.Value) bool {
	if s.has[v] {
		return false
	}
	s.has[v] = true
	s.vals = append(s.vals, v)
	return true
}

// Has reports whether v is in s.
func (s *Set) Has(v ir.Value) bool { return s != nil && s.has[v] }

// Len returns the number of values.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vals)
}

// Values returns the values in insertion order. The slice must not be
// modified.
func (s *Set) Values() []ir.Value {
	if s == nil {
		return nil
	}
	return s.vals
}

// All iterates over the values in insertion order.
func (s *Set) All() iter.Seq[ir.Value] {
	return func(yield func(ir.Value) bool) {
		for _, v := range s.Values() {
			if !yield(v) {
				return
			}
		}
	}
}

// Instrs returns the instructions in s, in insertion order.
func (s *Set) Instrs() []*ir.Instr {
	var out []*ir.Instr
	for _, v := range s.Values() {
		if instr, ok := v.(*ir.Instr); ok {
			out = append(out, instr)
		}
	}
	return out
}
