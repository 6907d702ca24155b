package flow

import (
	"strings"

	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// Patterns names the calls and types the traversals treat specially.
// Nil matchers never match.
type Patterns struct {
	// Coercion matches the two-argument conversion shape `into(dst, src)`:
	// when src is reached, dst is reached too.
	Coercion pattern.Matcher
	// Comparison matches calls where bounded traversal stops.
	Comparison pattern.Matcher
	// Unpack matches calls where bounded traversal stops while chasing a
	// specific field.
	Unpack pattern.Matcher
	// MemCopy matches calls treated like a memcopy instruction.
	MemCopy pattern.Matcher
	// Owners are the tagged (account, key) type pairs whose field 3 is an
	// owner field and whose pointer casts lose field identity.
	Owners []TypePair
}

// TypePair is a pair of tagged type names, matched by substring against
// printed types.
type TypePair struct {
	Account string
	Key     string
}

// DefaultPatterns returns the built-in NEAR and Solana patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		Coercion:   pattern.Coercion,
		Comparison: pattern.Comparison,
		Unpack:     pattern.Unpack,
		MemCopy:    pattern.MemCopy,
		Owners: []TypePair{
			{Account: pattern.SolanaAccountInfo, Key: pattern.SolanaPubkey},
			{Account: pattern.AnchorAccountInfo, Key: pattern.AnchorPubkey},
		},
	}
}

// isOwnerPair reports whether from/to is one of the configured pairs.
func (p Patterns) isOwnerPair(from, to *ir.Type) bool {
	if from == nil || to == nil {
		return false
	}
	src, dst := from.String(), to.String()
	for _, pair := range p.Owners {
		if strings.Contains(src, pair.Account) && strings.Contains(dst, pair.Key) {
			return true
		}
	}
	return false
}

// isCoercion reports whether call has the coercion shape with argument 1 in
// visited.
func (p Patterns) isCoercion(call *ir.Instr, visited *Set) bool {
	callee := call.Callee()
	if callee == nil || !pattern.Match(p.Coercion, callee.Name()) {
		return false
	}
	args := call.Args()
	return len(args) >= 2 && visited.Has(args[1])
}

func calleeMatches(call *ir.Instr, m pattern.Matcher) bool {
	callee := call.Callee()
	return callee != nil && pattern.Match(m, callee.Name())
}
