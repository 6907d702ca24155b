package debug

import "sync"

// Collector keeps the traces of queries on selected functions. It is safe
// for concurrent use.
type Collector struct {
	mu       sync.Mutex
	traces   []*Trace
	byFunc   map[string][]*Trace
	onRecord func(fn string, t *Trace)
}

// NewCollector creates a Collector. onRecord, if non-nil, is called for
// every recorded trace while the collector is locked.
func NewCollector(onRecord func(fn string, t *Trace)) *Collector {
	return &Collector{
		byFunc:   make(map[string][]*Trace),
		onRecord: onRecord,
	}
}

// Record stores t under the function it was run for.
func (c *Collector) Record(fn string, t *Trace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces = append(c.traces, t)
	c.byFunc[fn] = append(c.byFunc[fn], t)
	if c.onRecord != nil {
		c.onRecord(fn, t)
	}
}

// Traces returns every trace in record order.
func (c *Collector) Traces() []*Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Trace(nil), c.traces...)
}

// ByFunc returns the traces recorded for fn.
func (c *Collector) ByFunc(fn string) []*Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Trace(nil), c.byFunc[fn]...)
}
