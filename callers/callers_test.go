package callers

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/nearflow/ir"
)

// build defines each function in order and emits the listed calls.
func build(calls map[string][]string, order ...string) *ir.Module {
	m := ir.NewModule()
	for _, name := range order {
		m.NewFunction(name, ir.Void)
	}
	for _, name := range order {
		fn := m.Func(name)
		b := fn.NewBlock()
		for _, callee := range calls[name] {
			b.Call(m.Func(callee))
		}
		b.Return()
	}
	return m
}

func names(fns []*ir.Function) []string {
	out := make([]string, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn.Name())
	}
	return out
}

func TestFind(t *testing.T) {
	// main -> handler -> check -> target ; other -> target
	m := build(map[string][]string{
		"main":    {"handler"},
		"handler": {"check"},
		"check":   {"target"},
		"other":   {"target"},
	}, "main", "handler", "check", "other", "target")
	target := m.Func("target")

	tests := []struct {
		name  string
		depth int
		want  []string
	}{
		{"zero depth", 0, []string{}},
		{"direct", 1, []string{"check", "other"}},
		{"two hops", 2, []string{"check", "other", "handler"}},
		{"beyond root", 10, []string{"check", "other", "handler", "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Find(target, tt.depth))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Find() (-want;got+): %s", diff)
			}
		})
	}

	if diff := cmp.Diff([]string{"check", "other"}, names(Direct(target))); diff != "" {
		t.Errorf("Direct() (-want;got+): %s", diff)
	}
}

func TestFind_Cycle(t *testing.T) {
	// a -> b -> c -> a
	m := build(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}, "a", "b", "c")

	got := names(Find(m.Func("a"), 100))
	if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
		t.Errorf("Find() (-want;got+): %s", diff)
	}
}

func TestFind_RepeatedCallSites(t *testing.T) {
	m := build(map[string][]string{
		"caller": {"target", "target"},
	}, "caller", "target")

	got := names(Find(m.Func("target"), 1))
	if diff := cmp.Diff([]string{"caller"}, got); diff != "" {
		t.Errorf("Find() (-want;got+): %s", diff)
	}
}

func TestFind_IgnoresNonCallUses(t *testing.T) {
	m := ir.NewModule()
	target := m.NewFunction("target", ir.Void)
	register := m.NewFunction("register", ir.Void)
	f := m.NewFunction("f", ir.Void)
	b := f.NewBlock()
	b.Call(register, target)
	b.Return()

	if got := Find(target, 3); len(got) != 0 {
		t.Errorf("Find() = %v, want none", names(got))
	}
	if got := Find(nil, 3); got != nil {
		t.Errorf("Find(nil) = %v, want nil", names(got))
	}
}
