package debug

// Trace is the record of one kernel query.
type Trace struct {
	Query   string
	Subject Site
	Args    []string // "depth=2", "field=3"
	Result  string
	Steps   []Site
}

// Site is a function, value or instruction mentioned by a trace.
type Site struct {
	Name     string
	Detail   string // instruction text or kind
	Position string // "file:line", empty if unknown
}
