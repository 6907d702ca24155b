package access

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mpyw/nearflow/ir"
)

const (
	setInsert = "_ZN8near_sdk11collections13unordered_set21UnorderedSet$LT$T$GT$6insert17hf8c99f299d0290bbE"
	mapGet    = "_ZN8near_sdk11collections10lookup_map18LookupMap$LT$K$C$V$GT$3get17h0E"
	dropGlue  = "_ZN4core3ptr13drop_in_place17h0E"
	cloneImpl = "_ZN60_$LT$alloc..string..String$u20$as$u20$core..clone..Clone$GT$5clone17h0E"
)

var contract = ir.Named("Contract")

// newLoc returns a function with a *Contract parameter and the address of
// field 1, for tests to attach consumers to.
func newLoc(m *ir.Module) (*ir.Block, *ir.Instr) {
	f := m.NewFunction("f", ir.Void)
	c := f.AddParam("c", ir.PointerTo(contract))
	b := f.NewBlock()
	return b, b.FieldAddr(c, 1, ir.Int)
}

func near() *Classifier { return NewClassifier(NearRules()) }

// =============================================================================
// Mode Lattice
// =============================================================================

func TestMode_Join(t *testing.T) {
	tests := []struct {
		a, b, want Mode
	}{
		{Unknown, Unknown, Unknown},
		{Unknown, Read, Read},
		{Write, Unknown, Write},
		{Read, Write, Both},
		{Both, Read, Both},
		{Write, Write, Write},
	}
	for _, tt := range tests {
		if got := tt.a.Join(tt.b); got != tt.want {
			t.Errorf("%v.Join(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Join(tt.a); got != tt.want {
			t.Errorf("%v.Join(%v) = %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}

	if Read != 0b10 || Write != 0b01 || Both != 0b11 || Unknown != 0 {
		t.Error("mode encoding changed")
	}
	if !Both.Reads() || !Both.Writes() || Read.Writes() || Write.Reads() {
		t.Error("Reads/Writes mismatch")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Unknown, Read, Write, Both} {
		text, err := m.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Mode
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != m {
			t.Errorf("round trip of %v = %v", m, got)
		}
	}
	if got, err := ParseMode(" Write "); err != nil || got != Write {
		t.Errorf("ParseMode(\" Write \") = %v, %v", got, err)
	}
	if _, err := ParseMode("mutate"); err == nil {
		t.Error("ParseMode(\"mutate\") should fail")
	}
}

// =============================================================================
// Classify
// =============================================================================

func TestClassify_DirectConsumers(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *ir.Module, b *ir.Block, loc *ir.Instr)
		want  Mode
	}{
		{
			name:  "load",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) { b.Load(loc) },
			want:  Read,
		},
		{
			name: "store to location",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Store(ir.NewConst("7", ir.Int), loc)
			},
			want: Write,
		},
		{
			name: "store of location",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Store(loc, b.Parent().AddParam("slot", ir.PointerTo(ir.PointerTo(ir.Int))))
			},
			want: Write,
		},
		{
			name: "memcopy destination",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.MemCopy(loc, b.Parent().AddParam("src", ir.PointerTo(ir.Int)))
			},
			want: Write,
		},
		{
			name: "memcopy source",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.MemCopy(b.Parent().AddParam("dst", ir.PointerTo(ir.Int)), loc)
			},
			want: Read,
		},
		{
			name: "memcopy length",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				p := b.Parent().AddParam("p", ir.PointerTo(ir.Int))
				b.MemCopy(p, p, loc)
			},
			want: Unknown,
		},
		{
			name: "memcopy intrinsic call",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				memcpy := m.NewFunction("llvm.memcpy.p0i8.p0i8.i64", ir.Void)
				b.Call(memcpy, loc, b.Parent().AddParam("src", ir.PointerTo(ir.Int)))
			},
			want: Write,
		},
		{
			name: "collection mutation as second argument",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				set := b.Parent().AddParam("set", ir.PointerTo(ir.Named("UnorderedSet")))
				b.Call(m.NewFunction(setInsert, ir.Bool), set, loc)
			},
			want: Write,
		},
		{
			name: "collection accessor",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Call(m.NewFunction(mapGet, ir.Opaque), loc)
			},
			want: Write,
		},
		{
			name: "drop",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Call(m.NewFunction(dropGlue, ir.Void), loc)
			},
			want: Read,
		},
		{
			name: "clone",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Call(m.NewFunction(cloneImpl, ir.Opaque), loc)
			},
			want: Read,
		},
		{
			name: "unresolved call",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				fp := b.Parent().AddParam("fp", ir.PointerTo(ir.Named("func")))
				b.Call(fp, loc)
			},
			want: Unknown,
		},
		{
			name: "declaration without parameters",
			build: func(m *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Call(m.NewFunction("extern_fn", ir.Void), loc)
			},
			want: Unknown,
		},
		{
			name:  "no consumers",
			build: func(*ir.Module, *ir.Block, *ir.Instr) {},
			want:  Unknown,
		},
		{
			name: "two loads",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Load(loc)
				b.Load(loc)
			},
			want: Unknown,
		},
		{
			name: "load and store",
			build: func(_ *ir.Module, b *ir.Block, loc *ir.Instr) {
				b.Store(b.Load(loc), loc)
			},
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule()
			b, loc := newLoc(m)
			tt.build(m, b, loc)
			if got := near().Classify(loc); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_ThroughCallee(t *testing.T) {
	m := ir.NewModule()

	// helper(a, b): reads a, writes b
	helper := m.NewFunction("helper", ir.Void)
	a := helper.AddParam("a", ir.PointerTo(ir.Int))
	bp := helper.AddParam("b", ir.PointerTo(ir.Int))
	hb := helper.NewBlock()
	hb.Load(a)
	hb.Store(ir.NewConst("0", ir.Int), bp)
	hb.Return()

	t.Run("matching parameter", func(t *testing.T) {
		b, loc := newLoc(m)
		b.Call(helper, loc, b.Parent().AddParam("other", ir.PointerTo(ir.Int)))
		if got := near().Classify(loc); got != Read {
			t.Errorf("Classify() = %v, want read", got)
		}
	})

	t.Run("last matching argument wins", func(t *testing.T) {
		f := m.NewFunction("g", ir.Void)
		c := f.AddParam("c", ir.PointerTo(contract))
		b := f.NewBlock()
		loc := b.FieldAddr(c, 1, ir.Int)
		b.Call(helper, loc, loc)
		if got := near().Classify(loc); got != Write {
			t.Errorf("Classify() = %v, want write", got)
		}
	})
}

func TestClassify_JoinOverConsumers(t *testing.T) {
	m := ir.NewModule()
	b, loc := newLoc(m)
	alias := b.Cast(loc, ir.PointerTo(ir.Int))
	v := b.Load(alias)
	b.Store(v, alias)

	if got := near().Classify(loc); got != Both {
		t.Errorf("Classify() = %v, want both", got)
	}

	tracker := NewTracker(near(), FieldRef{Struct: "Contract", Offset: 1})
	if _, got, ok := tracker.MatchMember(loc); !ok || got != Write {
		t.Errorf("MatchMember() = %v, %v; want write, true", got, ok)
	}
}

func TestClassify_DeadEndOther(t *testing.T) {
	m := ir.NewModule()
	b, loc := newLoc(m)
	b.Cast(loc, ir.PointerTo(ir.Int))

	if got := near().Classify(loc); got != Unknown {
		t.Errorf("Classify() = %v, want unknown", got)
	}
}

func TestClassify_RecursiveCalleeTerminates(t *testing.T) {
	m := ir.NewModule()
	rec := m.NewFunction("rec", ir.Void)
	p := rec.AddParam("p", ir.PointerTo(ir.Int))
	rb := rec.NewBlock()
	rb.Load(p)
	rb.Call(rec, p)
	rb.Return()

	b, loc := newLoc(m)
	b.Call(rec, loc)
	if got := near().Classify(loc); got != Read {
		t.Errorf("Classify() = %v, want read", got)
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := near().Classify(nil); got != Unknown {
		t.Errorf("Classify(nil) = %v, want unknown", got)
	}
}

func TestClassify_GoScheme(t *testing.T) {
	m := ir.NewModule()
	appendFn := m.NewFunction("builtin.append", ir.Opaque)
	lenFn := m.NewFunction("builtin.len", ir.Int)
	c := NewClassifier(GoRules())

	b, loc := newLoc(m)
	b.Call(appendFn, loc)
	if got := c.Classify(loc); got != Write {
		t.Errorf("append: Classify() = %v, want write", got)
	}

	b2, loc2 := newLoc(m)
	b2.Call(lenFn, loc2)
	if got := c.Classify(loc2); got != Read {
		t.Errorf("len: Classify() = %v, want read", got)
	}
}

// =============================================================================
// Schemes
// =============================================================================

func TestScheme(t *testing.T) {
	if diff := cmp.Diff([]string{"go", "near"}, Schemes()); diff != "" {
		t.Errorf("Schemes() (-want;got+): %s", diff)
	}
	if rules, err := Scheme(SchemeNear); err != nil || len(rules) != 4 {
		t.Errorf("Scheme(near) = %d rules, %v", len(rules), err)
	}

	_, err := Scheme("solidity")
	if !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("Scheme(solidity) error = %v, want ErrUnknownScheme", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustScheme(solidity) should panic")
		}
	}()
	MustScheme("solidity")
}

// =============================================================================
// Tracker
// =============================================================================

func TestTracker_MatchMember(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunction("f", ir.Void)
	c := f.AddParam("c", ir.PointerTo(contract))
	cc := f.AddParam("cc", ir.PointerTo(ir.PointerTo(contract)))
	other := f.AddParam("o", ir.PointerTo(ir.Named("Other")))
	b := f.NewBlock()

	field3 := b.FieldAddr(c, 3, ir.Int)
	b.Load(field3)
	field2 := b.FieldAddr(c, 2, ir.Int)
	b.Load(field2)
	cast := b.Cast(c, ir.PointerTo(ir.Int))
	b.Store(ir.NewConst("1", ir.Int), cast)
	deepCast := b.Cast(cc, ir.PointerTo(ir.Int))
	otherField := b.FieldAddr(other, 3, ir.Int)

	tracker := NewTracker(near(),
		FieldRef{Struct: "Contract", Offset: 3},
		FieldRef{Struct: "Contract", Offset: 0},
	)

	tests := []struct {
		name      string
		instr     *ir.Instr
		wantRef   FieldRef
		wantMode  Mode
		wantMatch bool
	}{
		{"tracked field", field3, FieldRef{"Contract", 3}, Read, true},
		{"untracked offset", field2, FieldRef{}, Unknown, false},
		{"cast for field 0", cast, FieldRef{"Contract", 0}, Write, true},
		{"cast of double pointer", deepCast, FieldRef{}, Unknown, false},
		{"other struct", otherField, FieldRef{}, Unknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, mode, ok := tracker.MatchMember(tt.instr)
			if ref != tt.wantRef || mode != tt.wantMode || ok != tt.wantMatch {
				t.Errorf("MatchMember() = (%v, %v, %v), want (%v, %v, %v)",
					ref, mode, ok, tt.wantRef, tt.wantMode, tt.wantMatch)
			}
		})
	}

	if name, mode, ok := tracker.MatchStruct(field2, []string{"Other", "Contract"}); !ok || name != "Contract" || mode != Read {
		t.Errorf("MatchStruct(field2) = (%q, %v, %v)", name, mode, ok)
	}
	if _, _, ok := tracker.MatchStruct(deepCast, []string{"Contract"}); ok {
		t.Error("MatchStruct should ignore casts of double pointers")
	}
}

// =============================================================================
// Field List Format
// =============================================================================

func TestParseFieldRefs(t *testing.T) {
	input := `# tracked members
Contract 0

Contract 3   # owner
  lockup::Lockup 12
`
	got, err := ParseFieldRefs(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []FieldRef{
		{Struct: "Contract", Offset: 0},
		{Struct: "Contract", Offset: 3},
		{Struct: "lockup::Lockup", Offset: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFieldRefs() (-want;got+): %s", diff)
	}
}

func TestParseFieldRefs_Errors(t *testing.T) {
	for _, input := range []string{"Contract\n", "Contract x\n", "Contract -1\n"} {
		if _, err := ParseFieldRefs(strings.NewReader(input)); err == nil {
			t.Errorf("ParseFieldRefs(%q) should fail", input)
		}
	}
}

func TestParseStructs(t *testing.T) {
	got, err := ParseStructs(strings.NewReader("# structs\nContract\n\nStorage # main\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Contract", "Storage"}, got); diff != "" {
		t.Errorf("ParseStructs() (-want;got+): %s", diff)
	}
}
