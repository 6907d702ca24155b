package ir

// =============================================================================
// Type Tags
// =============================================================================

// TypeTag is the coarse classification of a value's type.
type TypeTag int

const (
	// TagOther covers aggregates, named types and anything not listed below.
	TagOther TypeTag = iota
	// TagPointer is an address of another type.
	TagPointer
	// TagInteger covers integer and boolean scalars.
	TagInteger
	// TagFloat covers floating point scalars.
	TagFloat
	// TagLabel marks branch targets. Label values are never traversed.
	TagLabel
	// TagVoid is the type of instructions that produce no result.
	TagVoid
)

func (t TypeTag) String() string {
	switch t {
	case TagPointer:
		return "pointer"
	case TagInteger:
		return "integer"
	case TagFloat:
		return "float"
	case TagLabel:
		return "label"
	case TagVoid:
		return "void"
	default:
		return "other"
	}
}

// =============================================================================
// Type
// =============================================================================

// Type describes a value's type. Only the tag, the name of named types and
// the pointee of pointers are modelled.
type Type struct {
	Tag  TypeTag
	Name string
	Elem *Type // pointee, TagPointer only
}

// Predeclared types.
var (
	Void   = &Type{Tag: TagVoid}
	Label  = &Type{Tag: TagLabel, Name: "label"}
	Int    = &Type{Tag: TagInteger, Name: "int"}
	Bool   = &Type{Tag: TagInteger, Name: "bool"}
	Float  = &Type{Tag: TagFloat, Name: "float64"}
	Opaque = &Type{Tag: TagOther}
)

// Named returns a named aggregate type.
func Named(name string) *Type {
	return &Type{Tag: TagOther, Name: name}
}

// PointerTo returns a pointer to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Tag: TagPointer, Elem: elem}
}

// IsLabel reports whether t is a label type.
func (t *Type) IsLabel() bool {
	return t != nil && t.Tag == TagLabel
}

// IsVoid reports whether t is the void type.
func (t *Type) IsVoid() bool {
	return t == nil || t.Tag == TagVoid
}

// Pointee returns the pointed-to type, or nil if t is not a pointer.
func (t *Type) Pointee() *Type {
	if t == nil || t.Tag != TagPointer {
		return nil
	}
	return t.Elem
}

// PointsTo reports whether t is a single-level pointer to the named type.
//
//	*Contract   → PointsTo("Contract") = true
//	**Contract  → PointsTo("Contract") = false
func (t *Type) PointsTo(name string) bool {
	elem := t.Pointee()
	if elem == nil || elem.Tag == TagPointer {
		return false
	}
	return elem.Name == name
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch {
	case t.Tag == TagPointer && t.Elem != nil:
		return "*" + t.Elem.String()
	case t.Name != "":
		return t.Name
	default:
		return t.Tag.String()
	}
}
