package access

import (
	"github.com/mpyw/nearflow/ir"
	"github.com/mpyw/nearflow/pattern"
)

// =============================================================================
// Classifier
// =============================================================================

// Classifier classifies the downstream use of a location.
type Classifier struct {
	// Rules classify calls by callee name. The first matching rule wins.
	Rules pattern.Table[Mode]
	// MemCopy matches calls treated like a memcopy instruction.
	MemCopy pattern.Matcher
}

// NewClassifier returns a classifier with the rules of the given scheme.
func NewClassifier(rules pattern.Table[Mode]) *Classifier {
	return &Classifier{Rules: rules, MemCopy: pattern.MemCopy}
}

// step is a pending classification of subject, reached from prev.
type step struct {
	subject ir.Value
	prev    ir.Value
}

// Classify reports how loc is used. A location with anything other than
// exactly one consumer is Unknown. Otherwise the consumer is classified:
//
//	load                        Read
//	store                       Write
//	memcopy                     Write as destination, Read as source
//	call matching a rule        the rule's mode
//	call, unresolved            Unknown
//	call, resolved              the callee parameter receiving the location
//	                            is classified in turn (last matching
//	                            argument); Unknown if not an argument
//	anything else               Join of all its consumers; Unknown if none
//
// Each (subject, previous) pair is classified once per query, so cycles
// through phis or recursive calls terminate; a revisit contributes Unknown.
func (c *Classifier) Classify(loc ir.Value) Mode {
	if loc == nil {
		return Unknown
	}
	refs := loc.Referrers()
	if len(refs) != 1 {
		return Unknown
	}

	seen := make(map[step]bool)
	work := []step{{subject: refs[0], prev: loc}}
	mode := Unknown
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[s] {
			continue
		}
		seen[s] = true

		m, next := c.classify(s)
		mode = mode.Join(m)
		work = append(work, next...)
	}
	return mode
}

// classify returns the mode of one step, or the steps it defers to.
func (c *Classifier) classify(s step) (Mode, []step) {
	if instr, ok := s.subject.(*ir.Instr); ok {
		switch instr.Op() {
		case ir.OpLoad:
			return Read, nil
		case ir.OpStore:
			return Write, nil
		case ir.OpMemCopy:
			return copyMode(instr.Dst(), instr.Src(), s.prev), nil
		case ir.OpCall:
			return c.call(instr, s.prev)
		}
	}

	refs := s.subject.Referrers()
	next := make([]step, 0, len(refs))
	for _, user := range refs {
		next = append(next, step{subject: user, prev: s.subject})
	}
	return Unknown, next
}

func (c *Classifier) call(call *ir.Instr, prev ir.Value) (Mode, []step) {
	callee := call.Callee()
	if callee == nil {
		return Unknown, nil
	}
	name := callee.Name()
	if pattern.Match(c.MemCopy, name) {
		return copyMode(call.Arg(0), call.Arg(1), prev), nil
	}
	if m, ok := c.Rules.Lookup(name); ok {
		return m, nil
	}

	idx := -1
	for i, arg := range call.Args() {
		if arg == prev {
			idx = i
		}
	}
	param := callee.Param(idx)
	if param == nil {
		return Unknown, nil
	}
	return Unknown, []step{{subject: param, prev: call}}
}

func copyMode(dst, src, prev ir.Value) Mode {
	switch prev {
	case dst:
		return Write
	case src:
		return Read
	}
	return Unknown
}
