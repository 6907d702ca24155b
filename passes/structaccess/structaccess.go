// Package structaccess reports reads and writes of tracked struct members.
//
// Members are "<struct> <offset>" pairs, given inline with -fields
// (comma-separated), in a file with -fields-file (one pair per line, '#'
// comments), or in the access section of the nearflow configuration:
//
//	structaccess -fields 'example.com/bank.Contract 1,example.com/bank.Contract 3' ./...
//
// Each field address of a tracked member is classified by how it is used
// afterwards; addresses whose use cannot be classified are not reported.
// Reports are suppressed with //nearflow:ignore on the line or the line
// above, in a function's doc comment, or in the package doc comment.
package structaccess

import (
	"fmt"
	"go/ast"
	"os"
	"strings"

	"golang.org/x/tools/go/analysis"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/access"
	"github.com/mpyw/nearflow/internal/directive"
)

// Analyzer reports accesses to tracked struct members.
var Analyzer = &analysis.Analyzer{
	Name:     "structaccess",
	Doc:      "reports reads and writes of tracked struct members",
	Requires: []*analysis.Analyzer{nearflow.Analyzer},
	Run:      run,
}

var (
	fields     string
	fieldsFile string
)

func init() {
	Analyzer.Flags.StringVar(&fields, "fields", "", "comma-separated '<struct> <offset>' members to track")
	Analyzer.Flags.StringVar(&fieldsFile, "fields-file", "", "file listing '<struct> <offset>' members to track, one per line")
}

func run(pass *analysis.Pass) (any, error) {
	res := pass.ResultOf[nearflow.Analyzer].(*nearflow.Result)
	k := res.Kernel

	refs, err := trackedFields(k)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	tracker := k.Tracker(refs...)

	var files []*ast.File
	for _, f := range pass.Files {
		if !ast.IsGenerated(f) {
			files = append(files, f)
		}
	}
	ignores := directive.BuildIgnores(pass.Fset, files)

	for _, fn := range k.Module.Funcs() {
		src := res.Positions.Source(fn)
		if src == nil || fn.IsDeclaration() || ignores.FuncIgnored(src) {
			continue
		}
		for instr := range fn.Instrs() {
			ref, mode, ok := tracker.MatchMember(instr)
			if !ok {
				continue
			}
			var verb string
			switch {
			case mode.Writes():
				verb = "write"
			case mode.Reads():
				verb = "read"
			default:
				continue
			}
			pos := res.Positions.Pos(instr)
			if !pos.IsValid() || ignores.Suppressed(pos) {
				continue
			}
			pass.Reportf(pos, "%s of %s field %d", verb, ref.Struct, ref.Offset)
		}
	}

	for _, pos := range ignores.Unused() {
		pass.Reportf(pos, "unused nearflow:ignore directive")
	}
	return nil, nil
}

// trackedFields merges the configured members with those of the flags.
func trackedFields(k *nearflow.Kernel) ([]access.FieldRef, error) {
	refs, err := k.Config.TrackedFields()
	if err != nil {
		return nil, err
	}
	if fields != "" {
		more, err := access.ParseFieldRefs(strings.NewReader(strings.ReplaceAll(fields, ",", "\n")))
		if err != nil {
			return nil, fmt.Errorf("-fields: %w", err)
		}
		refs = append(refs, more...)
	}
	if fieldsFile != "" {
		f, err := os.Open(fieldsFile)
		if err != nil {
			return nil, fmt.Errorf("-fields-file: %w", err)
		}
		defer f.Close()
		more, err := access.ParseFieldRefs(f)
		if err != nil {
			return nil, fmt.Errorf("-fields-file %s: %w", fieldsFile, err)
		}
		refs = append(refs, more...)
	}
	return refs, nil
}
