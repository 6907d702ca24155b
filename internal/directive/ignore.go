package directive

import (
	"go/ast"
	"go/token"
	"slices"

	"golang.org/x/tools/go/ssa"
)

// ignoreEntry tracks an ignore directive and whether it was used.
type ignoreEntry struct {
	pos  token.Pos // Position of the ignore comment
	used bool      // Whether this ignore suppressed a report
}

// IgnoreMap tracks line numbers that have ignore comments.
type IgnoreMap map[int]*ignoreEntry

// BuildIgnoreMap scans a file for ignore comments and returns a map.
//
//	//nearflow:ignore          // Line 5 → map[5] (line-level)
//	c.owner = v                // Line 6 → ignored (line 5 covers line 6)
//
//	// nearflow:ignore         // package doc → map[-1] (file-level)
//	package bank               // All lines ignored
func BuildIgnoreMap(fset *token.FileSet, file *ast.File) IgnoreMap {
	m := make(IgnoreMap)
	for _, cg := range file.Comments {
		if cg == file.Doc {
			continue
		}
		for _, c := range cg.List {
			if IsIgnoreDirective(c.Text) {
				m[fset.Position(c.Pos()).Line] = &ignoreEntry{pos: c.Pos()}
			}
		}
	}
	if file.Doc != nil {
		for _, c := range file.Doc.List {
			if IsIgnoreDirective(c.Text) {
				// File-level ignores never count as unused.
				m[-1] = &ignoreEntry{pos: c.Pos(), used: true}
			}
		}
	}
	return m
}

// ShouldIgnore reports whether line is covered by an ignore on the same or
// previous line, or by a file-level ignore, marking the directive used.
// Line-level directives take precedence so they are not reported unused.
func (m IgnoreMap) ShouldIgnore(line int) bool {
	for _, l := range []int{line, line - 1, -1} {
		if entry, ok := m[l]; ok {
			entry.used = true
			return true
		}
	}
	return false
}

// GetUnusedIgnores returns the positions of line-level ignore directives
// that were not used, in source order.
func (m IgnoreMap) GetUnusedIgnores() []token.Pos {
	var unused []token.Pos
	for line, entry := range m {
		if line != -1 && !entry.used {
			unused = append(unused, entry.pos)
		}
	}
	slices.Sort(unused)
	return unused
}

// MarkUsed marks the ignore directive at the given line as used.
func (m IgnoreMap) MarkUsed(line int) {
	if entry, ok := m[line]; ok {
		entry.used = true
	}
}

// FunctionIgnoreEntry represents a function-level ignore directive.
type FunctionIgnoreEntry struct {
	DirectiveLine int // Line of the ignore directive
}

// BuildFunctionIgnoreSet returns the functions of file whose doc comment
// carries an ignore directive, keyed by name position (ssa.Function.Pos).
func BuildFunctionIgnoreSet(fset *token.FileSet, file *ast.File) map[token.Pos]FunctionIgnoreEntry {
	result := make(map[token.Pos]FunctionIgnoreEntry)
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}
		for _, c := range fd.Doc.List {
			if IsIgnoreDirective(c.Text) {
				result[fd.Name.Pos()] = FunctionIgnoreEntry{
					DirectiveLine: fset.Position(c.Pos()).Line,
				}
				break
			}
		}
	}
	return result
}

// =============================================================================
// Package-wide Ignores
// =============================================================================

// Ignores holds the ignore directives of every file of a package.
type Ignores struct {
	fset  *token.FileSet
	lines map[string]IgnoreMap
	funcs map[string]map[token.Pos]FunctionIgnoreEntry
}

// BuildIgnores scans files for ignore directives.
func BuildIgnores(fset *token.FileSet, files []*ast.File) *Ignores {
	ig := &Ignores{
		fset:  fset,
		lines: make(map[string]IgnoreMap),
		funcs: make(map[string]map[token.Pos]FunctionIgnoreEntry),
	}
	for _, f := range files {
		name := fset.Position(f.Pos()).Filename
		ig.lines[name] = BuildIgnoreMap(fset, f)
		ig.funcs[name] = BuildFunctionIgnoreSet(fset, f)
	}
	return ig
}

// FuncIgnored reports whether fn, or the function it is nested in, has a
// function-level ignore, marking the directive used.
func (ig *Ignores) FuncIgnored(fn *ssa.Function) bool {
	for ; fn != nil; fn = fn.Parent() {
		filename := ig.fset.Position(fn.Pos()).Filename
		entry, ok := ig.funcs[filename][fn.Pos()]
		if !ok {
			continue
		}
		ig.lines[filename].MarkUsed(entry.DirectiveLine)
		return true
	}
	return false
}

// Suppressed reports whether a report at pos is covered by a line-level or
// file-level ignore.
func (ig *Ignores) Suppressed(pos token.Pos) bool {
	p := ig.fset.Position(pos)
	m, ok := ig.lines[p.Filename]
	return ok && m.ShouldIgnore(p.Line)
}

// Unused returns the ignore directives that suppressed nothing.
func (ig *Ignores) Unused() []token.Pos {
	var out []token.Pos
	for _, m := range ig.lines {
		out = append(out, m.GetUnusedIgnores()...)
	}
	slices.Sort(out)
	return out
}
