// Package nearflow is a static analysis kernel for smart contracts.
//
// It answers six queries over an SSA-form module: value-graph closure,
// bounded field-aware reachability, call-graph reachability, privilege
// classification, access-mode classification and caller discovery.
// Detectors consume the queries through Kernel, either directly over an
// ir.Module or through Analyzer, which lowers a Go package with go/ssa.
package nearflow

import (
	"go/ast"
	"os"
	"reflect"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"

	"github.com/mpyw/nearflow/config"
	"github.com/mpyw/nearflow/internal"
	"github.com/mpyw/nearflow/internal/directive"
	"github.com/mpyw/nearflow/internal/frontend"
	"github.com/mpyw/nearflow/ir"
)

// Analyzer builds a Kernel for each package. Passes use it through
// Requires and read *Result.
var Analyzer = &analysis.Analyzer{
	Name:       "nearflow",
	Doc:        "builds the nearflow analysis kernel for a package",
	Requires:   []*analysis.Analyzer{buildssa.Analyzer},
	Run:        run,
	ResultType: reflect.TypeOf((*Result)(nil)),
}

var (
	configPath  string
	debugFilter string
)

func init() {
	Analyzer.Flags.StringVar(&configPath, "config", "", "YAML file with pattern tables and bounds")
	Analyzer.Flags.StringVar(&debugFilter, "debug", "", "trace queries on functions matching this regexp to stderr")
}

// Result is the value Analyzer produces for a package.
type Result struct {
	Kernel    *Kernel
	Positions *frontend.Positions
	// Privileged holds the functions marked //nearflow:privileged.
	Privileged *directive.FuncSet
}

func run(pass *analysis.Pass) (any, error) {
	ssaInfo := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	prep := internal.Prepare(pass, ssaInfo, buildSkipFiles(pass), debugFilter)
	k, err := New(prep.Module, cfg)
	if err != nil {
		return nil, err
	}
	k.AssumePrivileged(func(fn *ir.Function) bool {
		return prep.Privileged.Contains(prep.Positions.Source(fn))
	})
	if prep.Debug != nil {
		k.Trace(prep.Debug, os.Stderr)
	}
	return &Result{Kernel: k, Positions: prep.Positions, Privileged: prep.Privileged}, nil
}

// buildSkipFiles creates a set of filenames to skip.
// Generated files are always skipped.
// Test files can be skipped via the driver's built-in -test flag.
func buildSkipFiles(pass *analysis.Pass) map[string]bool {
	skipFiles := make(map[string]bool)
	for _, file := range pass.Files {
		if ast.IsGenerated(file) {
			skipFiles[pass.Fset.Position(file.Pos()).Filename] = true
		}
	}
	return skipFiles
}
