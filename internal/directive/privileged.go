package directive

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FuncKey identifies a declared function or method.
type FuncKey struct {
	PkgPath      string // Package path (e.g., "example.com/bank")
	ReceiverType string // Receiver type name without pointer/package, empty for functions
	FuncName     string // Function or method name
}

// KeyOf returns the key of an ssa function.
func KeyOf(fn *ssa.Function) FuncKey {
	key := FuncKey{FuncName: fn.Name()}
	if fn.Pkg != nil && fn.Pkg.Pkg != nil {
		key.PkgPath = fn.Pkg.Pkg.Path()
	}
	if sig := fn.Signature; sig != nil && sig.Recv() != nil {
		key.ReceiverType = receiverName(sig.Recv().Type())
	}
	return key
}

// FuncSet is a set of functions carrying a directive.
type FuncSet struct {
	known map[FuncKey]struct{}
}

// NewFuncSet creates an empty FuncSet.
func NewFuncSet() *FuncSet {
	return &FuncSet{known: make(map[FuncKey]struct{})}
}

// Add adds a key to the set.
func (s *FuncSet) Add(key FuncKey) {
	if s != nil && s.known != nil {
		s.known[key] = struct{}{}
	}
}

// Len returns the number of keys.
func (s *FuncSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.known)
}

// Contains reports whether fn is in the set or carries a privileged
// directive in its own declaration.
func (s *FuncSet) Contains(fn *ssa.Function) bool {
	if fn == nil {
		return false
	}
	if s != nil && s.known != nil {
		if _, ok := s.known[KeyOf(fn)]; ok {
			return true
		}
	}
	if decl, ok := fn.Syntax().(*ast.FuncDecl); ok && decl.Doc != nil {
		for _, c := range decl.Doc.List {
			if IsPrivilegedDirective(c.Text) {
				return true
			}
		}
	}
	return false
}

// BuildPrivilegedFunctionSet collects the functions of file marked with
// //nearflow:privileged.
//
//	//nearflow:privileged
//	func assertOwner(ctx Context) { ... }
//	→ FuncKey{PkgPath: "...", FuncName: "assertOwner"}
//
//	//nearflow:privileged
//	func (c *Contract) onlyOwner() { ... }
//	→ FuncKey{PkgPath: "...", ReceiverType: "Contract", FuncName: "onlyOwner"}
func BuildPrivilegedFunctionSet(file *ast.File, pkgPath string) map[FuncKey]struct{} {
	result := make(map[FuncKey]struct{})
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}
		for _, c := range fd.Doc.List {
			if !IsPrivilegedDirective(c.Text) {
				continue
			}
			key := FuncKey{PkgPath: pkgPath, FuncName: fd.Name.Name}
			if fd.Recv != nil && len(fd.Recv.List) > 0 {
				key.ReceiverType = receiverExprName(fd.Recv.List[0].Type)
			}
			result[key] = struct{}{}
			break
		}
	}
	return result
}

// receiverName returns the bare type name of a receiver type.
func receiverName(t types.Type) string {
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		return named.Obj().Name()
	}
	return strings.TrimPrefix(t.String(), "*")
}

// receiverExprName returns the bare type name of a receiver expression:
// *T, T, T[K] and *T[K, V] all give "T".
func receiverExprName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverExprName(e.X)
	case *ast.ParenExpr:
		return receiverExprName(e.X)
	case *ast.IndexExpr:
		return receiverExprName(e.X)
	case *ast.IndexListExpr:
		return receiverExprName(e.X)
	case *ast.Ident:
		return e.Name
	}
	return ""
}
