package privilege

import (
	"testing"

	"github.com/mpyw/nearflow/ir"
)

const (
	predecessor = "_ZN8near_sdk11environment3env22predecessor_account_id17h0E"
	accountEq   = "_ZN73_$LT$near_sdk..types..account_id..AccountId$u20$as$u20$core..cmp..PartialEq$GT$2eq17h0E"
)

type fixture struct {
	m    *ir.Module
	line int
}

func newFixture() *fixture { return &fixture{m: ir.NewModule()} }

func (f *fixture) decl(name string) *ir.Function { return f.m.NewFunction(name, ir.Void) }

// define gives name a body calling each callee, one line per call.
func (f *fixture) define(name string, callees ...*ir.Function) *ir.Function {
	fn := f.m.NewFunction(name, ir.Void)
	b := fn.NewBlock()
	for _, callee := range callees {
		f.line++
		b.Call(callee).At("src/lib.rs", f.line)
	}
	b.Return()
	return fn
}

// =============================================================================
// Scenarios
// =============================================================================

func TestIsPrivileged_OwnBody(t *testing.T) {
	f := newFixture()
	pred, eq, log := f.decl(predecessor), f.decl(accountEq), f.decl("log")
	owner := f.define("owner_only", pred, log, eq)

	c := NewClassifier()
	if !c.IsPrivileged(owner, 0) {
		t.Error("IsPrivileged(owner_only, 0) = false, want true")
	}

	// Order inside the body does not matter.
	reversed := f.define("reversed", eq, pred)
	if !c.IsPrivileged(reversed, 0) {
		t.Error("IsPrivileged(reversed, 0) = false, want true")
	}

	// Either call alone is not enough.
	if c.IsPrivileged(f.define("only_accessor", pred), DefaultDepth) {
		t.Error("accessor without comparison should not be privileged")
	}
	if c.IsPrivileged(f.define("only_eq", eq), DefaultDepth) {
		t.Error("comparison without accessor should not be privileged")
	}
}

func TestIsPrivileged_ThroughCallee(t *testing.T) {
	f := newFixture()
	owner := f.define("owner_only", f.decl(predecessor), f.decl(accountEq))
	withdraw := f.define("withdraw", owner)
	outer := f.define("outer", withdraw)
	outermost := f.define("outermost", outer)

	c := NewClassifier()
	tests := []struct {
		name  string
		fn    *ir.Function
		depth int
		want  bool
	}{
		{"caller at depth 0", withdraw, 0, false},
		{"caller at depth 1", withdraw, 1, true},
		{"two levels at depth 1", outer, 1, false},
		{"two levels at default depth", outer, DefaultDepth, true},
		{"three levels at default depth", outermost, DefaultDepth, false},
		{"negative depth", owner, -1, false},
		{"nil function", nil, DefaultDepth, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsPrivileged(tt.fn, tt.depth); got != tt.want {
				t.Errorf("IsPrivileged(%v, %d) = %v, want %v", tt.fn, tt.depth, got, tt.want)
			}
		})
	}
}

func TestIsPrivileged_Monotonic(t *testing.T) {
	f := newFixture()
	owner := f.define("owner_only", f.decl(predecessor), f.decl(accountEq))
	fns := []*ir.Function{owner}
	for _, name := range []string{"l1", "l2", "l3", "l4"} {
		fns = append(fns, f.define(name, fns[len(fns)-1]))
	}

	c := NewClassifier()
	for _, fn := range fns {
		prev := false
		for depth := -1; depth <= 5; depth++ {
			got := c.IsPrivileged(fn, depth)
			if prev && !got {
				t.Errorf("IsPrivileged(%s) flipped to false at depth %d", fn.Name(), depth)
			}
			prev = got
		}
	}
}

func TestIsPrivileged_RecursionTerminates(t *testing.T) {
	m := ir.NewModule()
	a := m.NewFunction("a", ir.Void)
	b := m.NewFunction("b", ir.Void)
	a.NewBlock().Call(b).At("src/lib.rs", 1)
	b.NewBlock().Call(a).At("src/lib.rs", 2)

	if NewClassifier().IsPrivileged(a, 50) {
		t.Error("mutual recursion without identity checks should not be privileged")
	}
}

// =============================================================================
// Location Filtering
// =============================================================================

func TestIsPrivileged_LibraryLocation(t *testing.T) {
	m := ir.NewModule()
	pred := m.NewFunction(predecessor, ir.Void)
	eq := m.NewFunction(accountEq, ir.Void)

	lib := m.NewFunction("from_lib", ir.Void)
	lb := lib.NewBlock()
	lb.Call(pred).At("/root/.cargo/registry/near-sdk/src/env.rs", 10)
	lb.Call(eq).At("src/lib.rs", 11)

	noLoc := m.NewFunction("no_location", ir.Void)
	nb := noLoc.NewBlock()
	nb.Call(pred)
	nb.Call(eq).At("src/lib.rs", 12)

	// The equality scan covers library code.
	eqInLib := m.NewFunction("eq_in_lib", ir.Void)
	eb := eqInLib.NewBlock()
	eb.Call(pred).At("src/lib.rs", 13)
	eb.Call(eq).At("/rustc/abc/library/core/src/cmp.rs", 14)

	c := NewClassifier()
	if c.IsPrivileged(lib, 0) {
		t.Error("accessor in library code should be skipped")
	}
	if c.IsPrivileged(noLoc, 0) {
		t.Error("accessor without location should be skipped")
	}
	if !c.IsPrivileged(eqInLib, 0) {
		t.Error("comparison in library code should still count")
	}

	unfiltered := NewClassifier()
	unfiltered.LibraryLocation = nil
	if !unfiltered.IsPrivileged(lib, 0) || !unfiltered.IsPrivileged(noLoc, 0) {
		t.Error("without a location filter every instruction counts")
	}
}

func TestIsPrivileged_UnresolvedCallee(t *testing.T) {
	m := ir.NewModule()
	fn := m.NewFunction("dyn", ir.Void)
	fp := fn.AddParam("fp", ir.PointerTo(ir.Named("func")))
	fn.NewBlock().Call(fp).At("src/lib.rs", 1)

	if NewClassifier().IsPrivileged(fn, DefaultDepth) {
		t.Error("unresolved callees contribute nothing")
	}
}

// =============================================================================
// Assumed Functions
// =============================================================================

func TestIsPrivileged_Assume(t *testing.T) {
	f := newFixture()
	host := f.decl("host_owner_check")
	guarded := f.define("guarded", f.decl("log"))
	pause := f.define("pause", guarded)
	emergency := f.define("emergency", pause)

	c := NewClassifier()
	c.Assume = func(fn *ir.Function) bool { return fn == guarded || fn == host }

	tests := []struct {
		name  string
		fn    *ir.Function
		depth int
		want  bool
	}{
		{"assumed at depth 0", guarded, 0, true},
		{"assumed declaration", host, 0, true},
		{"caller at depth 0", pause, 0, false},
		{"caller at depth 1", pause, 1, true},
		{"two levels at depth 1", emergency, 1, false},
		{"two levels at depth 2", emergency, 2, true},
		{"negative depth", guarded, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsPrivileged(tt.fn, tt.depth); got != tt.want {
				t.Errorf("IsPrivileged(%s, %d) = %v, want %v", tt.fn.Name(), tt.depth, got, tt.want)
			}
		})
	}
}
