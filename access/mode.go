// Package access classifies how a traced memory location is used after it
// is computed: read, written, both, or unknown.
package access

import (
	"fmt"
	"strings"
)

// =============================================================================
// Mode Lattice
// =============================================================================

// Mode is a 2-bit access classification. Modes combine with Join (bitwise
// OR):
//
//	Unknown ⊔ m     = m
//	Read ⊔ Write    = Both
//	Both ⊔ m        = Both
type Mode uint8

const (
	Unknown Mode = 0b00
	Write   Mode = 0b01
	Read    Mode = 0b10
	Both    Mode = 0b11
)

// Join returns the least upper bound of m and other.
func (m Mode) Join(other Mode) Mode { return m | other }

// Reads reports whether m includes a read.
func (m Mode) Reads() bool { return m&Read != 0 }

// Writes reports whether m includes a write.
func (m Mode) Writes() bool { return m&Write != 0 }

func (m Mode) String() string {
	switch m {
	case Unknown:
		return "unknown"
	case Write:
		return "write"
	case Read:
		return "read"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses the String form of a mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown":
		return Unknown, nil
	case "write":
		return Write, nil
	case "read":
		return Read, nil
	case "both", "rw":
		return Both, nil
	}
	return Unknown, fmt.Errorf("unknown access mode %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
