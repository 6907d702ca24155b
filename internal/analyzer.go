// Package internal prepares a type-checked package for the nearflow kernel.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                         Analysis Flow                                    │
//	│                                                                          │
//	│   analyzer.go (public)                                                   │
//	│        │                                                                 │
//	│        ▼                                                                 │
//	│   internal/analyzer.go   ◀── You are here                                │
//	│   ┌─────────────────────────────────────────────────────────────────┐   │
//	│   │  Prepare()                                                      │   │
//	│   │    │                                                            │   │
//	│   │    ├── Skip excluded files                                      │   │
//	│   │    ├── Collect //nearflow:privileged functions                  │   │
//	│   │    ├── Compile the debug filter                                 │   │
//	│   │    └── Lower SSA into the IR (internal/frontend)                │   │
//	│   └─────────────────────────────────────────────────────────────────┘   │
//	│        │                                                                 │
//	│        ▼                                                                 │
//	│   Kernel (flow, callindex, privilege, access, callers)                   │
//	└─────────────────────────────────────────────────────────────────────────┘
package internal

import (
	"go/token"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/mpyw/nearflow/internal/directive"
	"github.com/mpyw/nearflow/internal/frontend"
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// Prepared is a package lowered for the kernel.
type Prepared struct {
	Module    *ir.Module
	Positions *frontend.Positions
	// Privileged holds the functions marked //nearflow:privileged.
	Privileged *directive.FuncSet
	// Debug matches the functions whose queries are traced, nil if disabled.
	Debug pattern.Matcher
}

// =============================================================================
// Entry Point
// =============================================================================

// Prepare lowers the source functions of pass into a module.
//
// Processing flow:
//  1. Compile debugFilter; an invalid expression is reported and disables
//     tracing without aborting the analysis
//  2. Collect privileged directives from every file not in skipFiles
//  3. Lower the functions of files not in skipFiles; their callees in
//     skipped files become declarations
func Prepare(pass *analysis.Pass, ssaInfo *buildssa.SSA, skipFiles map[string]bool, debugFilter string) *Prepared {
	var debugMatcher pattern.Matcher
	if debugFilter != "" {
		m, err := pattern.Regexp(debugFilter)
		if err != nil {
			pass.Reportf(token.NoPos, "invalid debug filter regex: %v", err)
		} else {
			debugMatcher = m
		}
	}

	privileged := directive.NewFuncSet()
	pkgPath := pass.Pkg.Path()
	for _, file := range pass.Files {
		if skipFiles[pass.Fset.Position(file.Pos()).Filename] {
			continue
		}
		for key := range directive.BuildPrivilegedFunctionSet(file, pkgPath) {
			privileged.Add(key)
		}
	}

	var fns []*ssa.Function
	for _, fn := range ssaInfo.SrcFuncs {
		pos := fn.Pos()
		if !pos.IsValid() {
			continue
		}
		if skipFiles[pass.Fset.Position(pos).Filename] {
			continue
		}
		fns = append(fns, fn)
	}

	mod, positions := frontend.Build(pass.Fset, fns)
	return &Prepared{
		Module:     mod,
		Positions:  positions,
		Privileged: privileged,
		Debug:      debugMatcher,
	}
}
