package nearflow

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/mpyw/nearflow/access"
	"github.com/mpyw/nearflow/callers"
	"github.com/mpyw/nearflow/callindex"
	"github.com/mpyw/nearflow/config"
	"github.com/mpyw/nearflow/flow"
	"github.com/mpyw/nearflow/heavyloop"
	"github.com/mpyw/nearflow/internal/debug"
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
	"github.com/mpyw/nearflow/privilege"
)

// =============================================================================
// Kernel
// =============================================================================

// Kernel answers the analysis queries over one module. The module and call
// graph are read-only, so queries may run concurrently.
type Kernel struct {
	Module *ir.Module
	Graph  *callindex.Graph
	Config *config.Config

	patterns  flow.Patterns
	privilege *privilege.Classifier
	access    *access.Classifier
	loops     *heavyloop.Detector

	traceFilter pattern.Matcher
	traces      *debug.Collector
}

// New builds the call graph of mod and compiles cfg. A nil cfg uses
// config.Default.
func New(mod *ir.Module, cfg *config.Config) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	patterns, err := cfg.FlowPatterns()
	if err != nil {
		return nil, err
	}
	pc, err := cfg.PrivilegeClassifier()
	if err != nil {
		return nil, err
	}
	ac, err := cfg.AccessClassifier()
	if err != nil {
		return nil, err
	}
	intrinsic, err := cfg.Intrinsic()
	if err != nil {
		return nil, err
	}
	loops, err := cfg.LoopDetector()
	if err != nil {
		return nil, err
	}

	g := callindex.Build(mod)
	g.Intrinsic = intrinsic
	return &Kernel{
		Module:    mod,
		Graph:     g,
		Config:    cfg,
		patterns:  patterns,
		privilege: pc,
		access:    ac,
		loops:     loops,
	}, nil
}

// Trace records every query run on a function whose name matches filter and
// writes it to w as it happens.
func (k *Kernel) Trace(filter pattern.Matcher, w io.Writer) {
	k.traceFilter = filter
	k.traces = debug.NewCollector(func(fn string, t *debug.Trace) {
		fmt.Fprint(w, "\n", debug.FormatTrace(fn, t))
	})
}

// AssumePrivileged makes IsPrivileged hold for every function assume
// reports, and so for their callers within the depth bound.
func (k *Kernel) AssumePrivileged(assume func(*ir.Function) bool) {
	k.privilege.Assume = assume
}

// Traces returns the recorded query traces.
func (k *Kernel) Traces() []*debug.Trace {
	if k.traces == nil {
		return nil
	}
	return k.traces.Traces()
}

// =============================================================================
// Queries
// =============================================================================

// Closure returns the forward use closure of seed.
func (k *Kernel) Closure(seed ir.Value, crossFunction, restrict bool) *flow.Set {
	out := flow.Closure(seed, flow.ClosureOptions{
		CrossFunction:         crossFunction,
		RestrictCrossFunction: restrict,
		Coercion:              k.patterns.Coercion,
	})
	k.trace(enclosing(seed), func() *debug.Trace {
		return &debug.Trace{
			Query:   "Closure",
			Subject: valueSite(seed),
			Args:    []string{"cross=" + strconv.FormatBool(crossFunction), "restrict=" + strconv.FormatBool(restrict)},
			Result:  fmt.Sprintf("%d values", out.Len()),
			Steps:   instrSites(out.Instrs()),
		}
	})
	return out
}

// Reach returns the bounded, filtered closure of seed. maxDepth may be
// flow.Unbounded and fieldOffset flow.AnyField.
func (k *Kernel) Reach(seed ir.Value, maxDepth, fieldOffset int) *flow.Set {
	out := flow.Reach(seed, flow.ReachOptions{
		MaxDepth:    maxDepth,
		FieldOffset: fieldOffset,
		Patterns:    k.patterns,
	})
	k.trace(enclosing(seed), func() *debug.Trace {
		return &debug.Trace{
			Query:   "Reach",
			Subject: valueSite(seed),
			Args:    []string{"depth=" + depthString(maxDepth), "field=" + fieldString(fieldOffset)},
			Result:  fmt.Sprintf("%d values", out.Len()),
			Steps:   instrSites(out.Instrs()),
		}
	})
	return out
}

// Reaches reports whether fn transitively calls a function matching m.
func (k *Kernel) Reaches(fn *ir.Function, m pattern.Matcher) bool {
	got := k.Graph.Reaches(k.Graph.Node(fn), m)
	k.traceReaches("Reaches", fn, m, got)
	return got
}

// FunctionReaches is Reaches with intrinsics excluded as starting points.
func (k *Kernel) FunctionReaches(fn *ir.Function, m pattern.Matcher) bool {
	got := k.Graph.FunctionReaches(fn, m)
	k.traceReaches("FunctionReaches", fn, m, got)
	return got
}

// CallReaches reports whether call's callee matches m or reaches it.
func (k *Kernel) CallReaches(call *ir.Instr, m pattern.Matcher) bool {
	return k.Graph.CallReaches(call, m)
}

func (k *Kernel) traceReaches(query string, fn *ir.Function, m pattern.Matcher, got bool) {
	k.trace(fn, func() *debug.Trace {
		var steps []debug.Site
		for _, callee := range k.Graph.Callees(fn) {
			steps = append(steps, debug.Site{Name: callee.Name()})
		}
		return &debug.Trace{
			Query:   query,
			Subject: debug.Site{Name: fn.Name()},
			Args:    []string{fmt.Sprint(m)},
			Result:  strconv.FormatBool(got),
			Steps:   steps,
		}
	})
}

// IsPrivileged reports whether fn, or a callee within depth levels, reads
// and compares the caller identity.
func (k *Kernel) IsPrivileged(fn *ir.Function, depth int) bool {
	got := k.privilege.IsPrivileged(fn, depth)
	k.trace(fn, func() *debug.Trace {
		var steps []debug.Site
		for _, callee := range k.Graph.Callees(fn) {
			steps = append(steps, debug.Site{Name: callee.Name()})
		}
		return &debug.Trace{
			Query:   "IsPrivileged",
			Subject: debug.Site{Name: fn.Name()},
			Args:    []string{"depth=" + strconv.Itoa(depth)},
			Result:  strconv.FormatBool(got),
			Steps:   steps,
		}
	})
	return got
}

// ClassifyAccess reports how loc is used after it is computed.
func (k *Kernel) ClassifyAccess(loc ir.Value) access.Mode {
	got := k.access.Classify(loc)
	k.trace(enclosing(loc), func() *debug.Trace {
		return &debug.Trace{
			Query:   "ClassifyAccess",
			Subject: valueSite(loc),
			Result:  got.String(),
			Steps:   instrSites(loc.Referrers()),
		}
	})
	return got
}

// Tracker returns a tracked-member matcher using the kernel's classifier.
func (k *Kernel) Tracker(fields ...access.FieldRef) *access.Tracker {
	return access.NewTracker(k.access, fields...)
}

// FindCallers returns the callers of fn up to depth hops upward.
func (k *Kernel) FindCallers(fn *ir.Function, depth int) []*ir.Function {
	got := callers.Find(fn, depth)
	k.trace(fn, func() *debug.Trace {
		steps := make([]debug.Site, 0, len(got))
		for _, c := range got {
			steps = append(steps, debug.Site{Name: c.Name()})
		}
		return &debug.Trace{
			Query:   "FindCallers",
			Subject: debug.Site{Name: fn.Name()},
			Args:    []string{"depth=" + strconv.Itoa(depth)},
			Result:  fmt.Sprintf("%d callers", len(got)),
			Steps:   steps,
		}
	})
	return got
}

// HeavyLoops returns the loops of fn larger than the configured size.
func (k *Kernel) HeavyLoops(fn *ir.Function) []*ir.Loop {
	got := k.loops.Find(fn)
	k.trace(fn, func() *debug.Trace {
		steps := make([]debug.Site, 0, len(got))
		for _, l := range got {
			s := debug.Site{Name: l.Head.String(), Detail: strconv.Itoa(l.Size()) + " instructions"}
			if pos := l.Pos(); pos.IsValid() {
				s.Position = pos.String()
			}
			steps = append(steps, s)
		}
		return &debug.Trace{
			Query:   "HeavyLoops",
			Subject: debug.Site{Name: fn.Name()},
			Args:    []string{"min=" + strconv.Itoa(k.loops.MinInstructions)},
			Result:  fmt.Sprintf("%d loops", len(got)),
			Steps:   steps,
		}
	})
	return got
}

// PrivilegedFunctions evaluates IsPrivileged for every defined function
// concurrently and returns the privileged ones in module order.
func (k *Kernel) PrivilegedFunctions(ctx context.Context, depth int) ([]*ir.Function, error) {
	var defined []*ir.Function
	for _, fn := range k.Module.Funcs() {
		if !fn.IsDeclaration() {
			defined = append(defined, fn)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	privileged := make([]bool, len(defined))
	for i, fn := range defined {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			privileged[i] = k.IsPrivileged(fn, depth)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("privileged functions: %w", err)
	}

	var out []*ir.Function
	for i, fn := range defined {
		if privileged[i] {
			out = append(out, fn)
		}
	}
	return out, nil
}

// =============================================================================
// Tracing
// =============================================================================

func (k *Kernel) trace(fn *ir.Function, build func() *debug.Trace) {
	if k.traces == nil || fn == nil || !pattern.Match(k.traceFilter, fn.Name()) {
		return
	}
	k.traces.Record(fn.Name(), build())
}

// enclosing returns the function defining v, if any.
func enclosing(v ir.Value) *ir.Function {
	switch v := v.(type) {
	case *ir.Instr:
		return v.Parent()
	case *ir.Param:
		return v.Parent()
	case *ir.Function:
		return v
	}
	return nil
}

func valueSite(v ir.Value) debug.Site {
	if instr, ok := v.(*ir.Instr); ok {
		return instrSite(instr)
	}
	if v == nil {
		return debug.Site{}
	}
	return debug.Site{Name: v.Name()}
}

func instrSite(instr *ir.Instr) debug.Site {
	s := debug.Site{Name: instr.Name(), Detail: instr.String()}
	if instr.Pos.IsValid() {
		s.Position = instr.Pos.String()
	}
	return s
}

func instrSites(instrs []*ir.Instr) []debug.Site {
	out := make([]debug.Site, 0, len(instrs))
	for _, instr := range instrs {
		out = append(out, instrSite(instr))
	}
	return out
}

func depthString(d int) string {
	if d == flow.Unbounded {
		return "unbounded"
	}
	return strconv.Itoa(d)
}

func fieldString(f int) string {
	if f == flow.AnyField {
		return "any"
	}
	return strconv.Itoa(f)
}
