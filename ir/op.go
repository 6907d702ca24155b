package ir

// Op is the opcode kind of an instruction.
type Op int

const (
	OpOther Op = iota
	OpCall
	OpLoad
	OpStore
	OpFieldAddr
	OpCast
	OpBinary
	OpCompare
	OpBranch
	OpSwitch
	OpReturn
	OpMemCopy
)

var opNames = [...]string{
	OpOther:     "other",
	OpCall:      "call",
	OpLoad:      "load",
	OpStore:     "store",
	OpFieldAddr: "fieldaddr",
	OpCast:      "cast",
	OpBinary:    "binop",
	OpCompare:   "cmp",
	OpBranch:    "br",
	OpSwitch:    "switch",
	OpReturn:    "ret",
	OpMemCopy:   "memcopy",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "op?"
	}
	return opNames[o]
}

// IsTerminator reports whether o ends a basic block.
func (o Op) IsTerminator() bool {
	return o == OpBranch || o == OpSwitch || o == OpReturn
}
