package access

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mpyw/nearflow/ir"
)

// =============================================================================
// Tracked Struct Members
// =============================================================================

// FieldRef names field Offset of struct Struct.
type FieldRef struct {
	Struct string
	Offset int
}

func (f FieldRef) String() string { return fmt.Sprintf("%s %d", f.Struct, f.Offset) }

// Tracker recognises accesses to tracked struct members and classifies them.
type Tracker struct {
	Fields     []FieldRef
	Classifier *Classifier
}

// NewTracker returns a tracker for fields using c.
func NewTracker(c *Classifier, fields ...FieldRef) *Tracker {
	return &Tracker{Fields: fields, Classifier: c}
}

// MatchMember reports whether instr computes the address of a tracked
// member, and how that address is used. Field 0 is also matched by a cast of
// a single-level pointer to the struct, since such casts replace the field
// address computation for the first member:
//
//	t1 = fieldaddr c .2         matches {Contract 2}
//	t2 = cast c to *u8          matches {Contract 0} when c is *Contract
//
// Both is reported as Write.
func (t *Tracker) MatchMember(instr *ir.Instr) (FieldRef, Mode, bool) {
	for _, f := range t.Fields {
		if matchesMember(instr, f) {
			return f, t.classify(instr), true
		}
	}
	return FieldRef{}, Unknown, false
}

// MatchStruct is MatchMember for any field of the named structs.
func (t *Tracker) MatchStruct(instr *ir.Instr, structs []string) (string, Mode, bool) {
	for _, s := range structs {
		if matchesStruct(instr, s) {
			return s, t.classify(instr), true
		}
	}
	return "", Unknown, false
}

func (t *Tracker) classify(instr *ir.Instr) Mode {
	m := t.Classifier.Classify(instr)
	if m == Both {
		return Write
	}
	return m
}

func matchesMember(instr *ir.Instr, f FieldRef) bool {
	switch instr.Op() {
	case ir.OpFieldAddr:
		return instr.Aggregate != nil && instr.Aggregate.Name == f.Struct && instr.Field == f.Offset
	case ir.OpCast:
		return f.Offset == 0 && instr.SourceType().PointsTo(f.Struct)
	}
	return false
}

func matchesStruct(instr *ir.Instr, name string) bool {
	switch instr.Op() {
	case ir.OpFieldAddr:
		return instr.Aggregate != nil && instr.Aggregate.Name == name
	case ir.OpCast:
		return instr.SourceType().PointsTo(name)
	}
	return false
}

// =============================================================================
// Field List Format
// =============================================================================

// ParseFieldRefs reads a field list: one "<struct> <offset>" pair per line.
// Blank lines and lines starting with '#' are skipped, as is anything after
// a '#' following the pair.
//
//	# tracked members
//	Contract 0
//	Contract 3   # owner
func ParseFieldRefs(r io.Reader) ([]FieldRef, error) {
	var refs []FieldRef
	err := scanEntries(r, func(lineNo int, fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("line %d: want \"<struct> <offset>\", got %q", lineNo, strings.Join(fields, " "))
		}
		off, err := strconv.ParseUint(fields[1], 10, 31)
		if err != nil {
			return fmt.Errorf("line %d: offset: %w", lineNo, err)
		}
		refs = append(refs, FieldRef{Struct: fields[0], Offset: int(off)})
		return nil
	})
	return refs, err
}

// ParseStructs reads a struct list: one name per line, same comment rules
// as ParseFieldRefs.
func ParseStructs(r io.Reader) ([]string, error) {
	var names []string
	err := scanEntries(r, func(_ int, fields []string) error {
		names = append(names, fields[0])
		return nil
	})
	return names, err
}

func scanEntries(r io.Reader, fn func(lineNo int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read entries: %w", err)
	}
	return nil
}
