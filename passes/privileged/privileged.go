// Package privileged reports the functions that gate behaviour on the
// caller identity and hands them to later stages.
//
// A function is privileged when the kernel's privilege query holds for it.
// A declaration marked with a directive is privileged as is, and so are its
// callers within the depth bound:
//
//	//nearflow:privileged
//	func (c *Contract) onlyOwner(e *Env) { ... }
//
// The pass result is a *handoff.Store with one "name@file" record per
// privileged function, the file named by import path (bank/contract.go). With -out, the records of every analyzed package are
// also written to a file.
package privileged

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sync"

	"golang.org/x/tools/go/analysis"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/handoff"
	"github.com/mpyw/nearflow/ir"
)

// Analyzer reports privileged functions.
var Analyzer = &analysis.Analyzer{
	Name:       "privileged",
	Doc:        "reports functions that check the caller identity",
	Requires:   []*analysis.Analyzer{nearflow.Analyzer},
	Run:        run,
	ResultType: reflect.TypeOf((*handoff.Store)(nil)),
}

var (
	depth   int
	outPath string
)

func init() {
	Analyzer.Flags.IntVar(&depth, "depth", -1, "callee depth searched; negative uses the configured depth")
	Analyzer.Flags.StringVar(&outPath, "out", "", "write name@file records of all packages to this file")
}

// all accumulates records across packages for -out.
var (
	allMu sync.Mutex
	all   = handoff.NewStore()
)

func run(pass *analysis.Pass) (any, error) {
	res := pass.ResultOf[nearflow.Analyzer].(*nearflow.Result)
	k := res.Kernel

	d := depth
	if d < 0 {
		d = k.Config.PrivilegeDepth()
	}
	found, err := k.PrivilegedFunctions(context.Background(), d)
	if err != nil {
		return nil, err
	}
	isFound := make(map[*ir.Function]bool, len(found))
	for _, fn := range found {
		isFound[fn] = true
	}

	store := handoff.NewStore()
	for _, fn := range k.Module.Funcs() {
		src := res.Positions.Source(fn)
		if src == nil || fn.IsDeclaration() {
			continue
		}
		if !isFound[fn] {
			continue
		}
		pos := res.Positions.FuncPos(fn)
		pass.Reportf(pos, "%s is privileged", src.Name())
		store.Put(handoff.Record{
			Function: fn.Name(),
			Extra:    []string{sourceFile(pass, pos)},
		})
	}

	if outPath != "" {
		if err := persist(store); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// sourceFile names the file declaring pos by import path, which unlike a
// module cache directory never contains the record separator.
func sourceFile(pass *analysis.Pass, pos token.Pos) string {
	return path.Join(pass.Pkg.Path(), filepath.Base(pass.Fset.Position(pos).Filename))
}

// persist merges store into the records of earlier packages and rewrites
// the output file.
func persist(store *handoff.Store) error {
	allMu.Lock()
	defer allMu.Unlock()
	for _, r := range store.Records() {
		all.Put(r)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if _, err := all.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outPath, err)
	}
	return nil
}
