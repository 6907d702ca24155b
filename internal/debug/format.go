package debug

import (
	"fmt"
	"strings"
)

// FormatTrace returns a formatted debug string for a query trace.
//
//	Function: example.com/bank.Withdraw
//	  Query: IsPrivileged(depth=2)
//	    └─ true
//
//	  Steps:
//	    1. bank.go:12: t3 = call example.com/bank.onlyOwner(t0)
//	    2. ...
func FormatTrace(funcName string, t *Trace) string {
	if t == nil {
		return ""
	}

	var buf strings.Builder

	fmt.Fprintf(&buf, "Function: %s\n", funcName)
	fmt.Fprintf(&buf, "  Query: %s(%s)\n", t.Query, strings.Join(t.Args, ", "))
	if t.Subject.Name != "" && t.Subject.Name != funcName {
		fmt.Fprintf(&buf, "    ├─ subject: %s\n", describe(t.Subject))
	}
	fmt.Fprintf(&buf, "    └─ %s\n", t.Result)

	if len(t.Steps) > 0 {
		fmt.Fprintf(&buf, "\n  Steps:\n")
		for i, s := range t.Steps {
			fmt.Fprintf(&buf, "    %d. %s\n", i+1, describe(s))
		}
	}

	return buf.String()
}

func describe(s Site) string {
	var parts []string
	if s.Position != "" {
		parts = append(parts, s.Position)
	}
	if s.Detail != "" {
		parts = append(parts, s.Detail)
	} else {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, ": ")
}
