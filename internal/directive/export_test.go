package directive

import (
	"go/ast"
	"go/token"
)

// Export unexported functions for testing.

// ReceiverExprName exports receiverExprName for tests.
func ReceiverExprName(expr ast.Expr) string {
	return receiverExprName(expr)
}

// Add adds an entry to IgnoreMap for tests. File-level entries (line -1) are
// marked used, matching BuildIgnoreMap.
func (m IgnoreMap) Add(line int, pos token.Pos) {
	m[line] = &ignoreEntry{pos: pos, used: line == -1}
}

// ContainsKey reports whether key was added to the set.
func (s *FuncSet) ContainsKey(key FuncKey) bool {
	if s == nil || s.known == nil {
		return false
	}
	_, exists := s.known[key]
	return exists
}
