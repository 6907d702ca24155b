// Package heavyloop finds loops whose bodies are large enough that iterating
// over caller-controlled data may exhaust the gas of a transaction.
//
//	for acc in self.accounts.iter() {     loop of 140 instructions
//	    ...                               > DefaultMinInstructions, reported
//	}
package heavyloop

import (
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// DefaultMinInstructions is the loop size reported by default.
const DefaultMinInstructions = 100

// Detector reports loops above a size.
type Detector struct {
	// MinInstructions is exclusive: a loop must be larger to be reported.
	MinInstructions int
	// LibraryFunction matches functions whose loops are never reported.
	LibraryFunction pattern.Matcher
	// LibraryLocation matches the files of loops that are never reported.
	LibraryLocation pattern.Matcher
}

// NewDetector returns a detector with the built-in NEAR patterns.
func NewDetector() *Detector {
	return &Detector{
		MinInstructions: DefaultMinInstructions,
		LibraryFunction: pattern.LibraryFunction,
		LibraryLocation: pattern.LibraryLocation,
	}
}

// Find returns the loops of fn with more than MinInstructions instructions,
// ordered by head.
func (d *Detector) Find(fn *ir.Function) []*ir.Loop {
	if fn == nil || pattern.Match(d.LibraryFunction, fn.Name()) {
		return nil
	}
	var out []*ir.Loop
	for _, l := range fn.Loops() {
		if pattern.Match(d.LibraryLocation, l.Pos().File) {
			continue
		}
		if l.Size() > d.MinInstructions {
			out = append(out, l)
		}
	}
	return out
}
