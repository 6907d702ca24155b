// Package handoff carries per-function findings from one analysis stage to
// the next.
//
// A Store is shared in memory between stages. It can also be persisted as
// newline-delimited records, one per function:
//
//	<function>
//	<function>@<extra>[@<extra>...]
package handoff

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Separator splits the fields of a persisted record.
const Separator = "@"

// ErrUnencodable is returned when a record field cannot be persisted
// because it contains Separator or a line break.
var ErrUnencodable = errors.New("field contains a separator or line break")

// Record is the finding for one function.
type Record struct {
	Function string
	Extra    []string
}

// Validate reports whether r survives a write and read round trip.
func (r Record) Validate() error {
	if err := checkField(r.Function); err != nil {
		return fmt.Errorf("function %q: %w", r.Function, err)
	}
	for i, e := range r.Extra {
		if err := checkField(e); err != nil {
			return fmt.Errorf("%s extra %d %q: %w", r.Function, i, e, err)
		}
	}
	return nil
}

func checkField(f string) error {
	if strings.Contains(f, Separator) || strings.ContainsAny(f, "\r\n") {
		return ErrUnencodable
	}
	return nil
}

func (r Record) String() string {
	if len(r.Extra) == 0 {
		return r.Function
	}
	return r.Function + Separator + strings.Join(r.Extra, Separator)
}

// ParseRecord parses one persisted line.
func ParseRecord(line string) Record {
	fields := strings.Split(line, Separator)
	r := Record{Function: fields[0]}
	if len(fields) > 1 {
		r.Extra = fields[1:]
	}
	return r
}

// Store maps function names to records. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Put adds r, replacing any record for the same function. A replaced record
// keeps its original position.
func (s *Store) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Function]; !ok {
		s.order = append(s.order, r.Function)
	}
	s.records[r.Function] = r
}

// Get returns the record for name.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[name]
	return r, ok
}

// Has reports whether name has a record.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Records returns all records in insertion order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name])
	}
	return out
}

// WriteTo writes the records in insertion order, one per line. Nothing is
// written when a record fails Validate.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	records := s.Records()
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}
	bw := bufio.NewWriter(w)
	var n int64
	for _, r := range records {
		c, err := fmt.Fprintln(bw, r.String())
		n += int64(c)
		if err != nil {
			return n, fmt.Errorf("write record %q: %w", r.Function, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush records: %w", err)
	}
	return n, nil
}

// Read parses persisted records. Blank lines are skipped; a later record for
// the same function replaces an earlier one.
func Read(r io.Reader) (*Store, error) {
	s := NewStore()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.Put(ParseRecord(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return s, nil
}
