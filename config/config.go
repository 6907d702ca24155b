// Package config loads the pattern tables and bounds used by the analysis
// kernel from YAML.
//
//	flow:
//	  coercion: 'core\.\.convert\.\.Into'
//	  owners:
//	    - {account: solana_program::account_info::AccountInfo, key: solana_program::pubkey::Pubkey}
//	privilege:
//	  depth: 3
//	access:
//	  scheme: near
//	  rules:
//	    - {pattern: 'my_cache.+put', mode: write}
//	  fields: ["Contract 0", "Contract 3"]
//	loops:
//	  min_instructions: 60
//
// Every pattern is a regular expression. Empty fields fall back to the
// built-in NEAR defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/mpyw/nearflow/access"
	"github.com/mpyw/nearflow/flow"
	"github.com/mpyw/nearflow/heavyloop"
	"github.com/mpyw/nearflow/pattern"
	"github.com/mpyw/nearflow/privilege"
)

// Config is the decoded configuration file.
type Config struct {
	Flow      Flow      `yaml:"flow"`
	Privilege Privilege `yaml:"privilege"`
	Access    Access    `yaml:"access"`
	Calls     Calls     `yaml:"calls"`
	Loops     Loops     `yaml:"loops"`

	// dir resolves relative paths; empty for configs not loaded from a file.
	dir string
}

// Flow configures value-graph traversal.
type Flow struct {
	Coercion   string  `yaml:"coercion"`
	Comparison string  `yaml:"comparison"`
	Unpack     string  `yaml:"unpack"`
	MemCopy    string  `yaml:"memcopy"`
	Owners     []Owner `yaml:"owners"`
}

// Owner is a tagged (account, key) type pair.
type Owner struct {
	Account string `yaml:"account"`
	Key     string `yaml:"key"`
}

// Privilege configures the privilege classifier.
type Privilege struct {
	Accessor        string `yaml:"accessor"`
	Equality        string `yaml:"equality"`
	LibraryLocation string `yaml:"library_location"`
	Depth           *int   `yaml:"depth"`
}

// Access configures the access-mode classifier and the tracked members.
type Access struct {
	Scheme     string   `yaml:"scheme"`
	Rules      []Rule   `yaml:"rules"`
	Fields     []string `yaml:"fields"`
	FieldsFile string   `yaml:"fields_file"`
}

// Rule maps a callee pattern to an access mode. Configured rules are tried
// before the scheme's.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Mode    string `yaml:"mode"`
}

// Calls configures the call-graph index.
type Calls struct {
	Intrinsic string `yaml:"intrinsic"`
}

// Loops configures the heavy loop detector.
type Loops struct {
	MinInstructions *int   `yaml:"min_instructions"`
	LibraryFunction string `yaml:"library_function"`
	LibraryLocation string `yaml:"library_location"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Access: Access{Scheme: access.SchemeNear}}
}

// Load reads and validates the configuration file at path. Relative paths
// inside it are resolved against its directory.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes and validates a configuration. Unknown keys are errors.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if _, err := c.FlowPatterns(); err != nil {
		return err
	}
	if _, err := c.PrivilegeClassifier(); err != nil {
		return err
	}
	if _, err := c.AccessClassifier(); err != nil {
		return err
	}
	if _, err := c.Intrinsic(); err != nil {
		return err
	}
	if c.Privilege.Depth != nil && *c.Privilege.Depth < 0 {
		return fmt.Errorf("privilege.depth: must not be negative, got %d", *c.Privilege.Depth)
	}
	if _, err := c.LoopDetector(); err != nil {
		return err
	}
	// The fields file is read when the fields are used.
	_, err := parseFields(c.Access.Fields)
	return err
}

// compile returns def for an empty expression.
func compile(key, expr string, def pattern.Matcher) (pattern.Matcher, error) {
	if expr == "" {
		return def, nil
	}
	m, err := pattern.Regexp(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}

// FlowPatterns returns the traversal patterns. Configured owner pairs
// replace the built-in ones.
func (c *Config) FlowPatterns() (flow.Patterns, error) {
	p := flow.DefaultPatterns()
	var err error
	if p.Coercion, err = compile("flow.coercion", c.Flow.Coercion, p.Coercion); err != nil {
		return flow.Patterns{}, err
	}
	if p.Comparison, err = compile("flow.comparison", c.Flow.Comparison, p.Comparison); err != nil {
		return flow.Patterns{}, err
	}
	if p.Unpack, err = compile("flow.unpack", c.Flow.Unpack, p.Unpack); err != nil {
		return flow.Patterns{}, err
	}
	if p.MemCopy, err = compile("flow.memcopy", c.Flow.MemCopy, p.MemCopy); err != nil {
		return flow.Patterns{}, err
	}
	if len(c.Flow.Owners) > 0 {
		p.Owners = nil
		for i, o := range c.Flow.Owners {
			if o.Account == "" || o.Key == "" {
				return flow.Patterns{}, fmt.Errorf("flow.owners[%d]: account and key are required", i)
			}
			p.Owners = append(p.Owners, flow.TypePair{Account: o.Account, Key: o.Key})
		}
	}
	return p, nil
}

// PrivilegeClassifier returns the configured privilege classifier.
func (c *Config) PrivilegeClassifier() (*privilege.Classifier, error) {
	pc := privilege.NewClassifier()
	var err error
	if pc.Accessor, err = compile("privilege.accessor", c.Privilege.Accessor, pc.Accessor); err != nil {
		return nil, err
	}
	if pc.Equality, err = compile("privilege.equality", c.Privilege.Equality, pc.Equality); err != nil {
		return nil, err
	}
	if pc.LibraryLocation, err = compile("privilege.library_location", c.Privilege.LibraryLocation, pc.LibraryLocation); err != nil {
		return nil, err
	}
	return pc, nil
}

// PrivilegeDepth returns the configured callee depth.
func (c *Config) PrivilegeDepth() int {
	if c.Privilege.Depth == nil {
		return privilege.DefaultDepth
	}
	return *c.Privilege.Depth
}

// AccessClassifier returns a classifier with the configured rules followed
// by the scheme's rules. An unknown scheme is an error.
func (c *Config) AccessClassifier() (*access.Classifier, error) {
	id := c.Access.Scheme
	if id == "" {
		id = access.SchemeNear
	}
	scheme, err := access.Scheme(id)
	if err != nil {
		return nil, fmt.Errorf("access.scheme: %w", err)
	}

	rules := make(pattern.Table[access.Mode], 0, len(c.Access.Rules)+len(scheme))
	for i, r := range c.Access.Rules {
		m, err := pattern.Regexp(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("access.rules[%d]: %w", i, err)
		}
		mode, err := access.ParseMode(r.Mode)
		if err != nil {
			return nil, fmt.Errorf("access.rules[%d]: %w", i, err)
		}
		rules = append(rules, pattern.Rule[access.Mode]{Matcher: m, Class: mode})
	}
	rules = append(rules, scheme...)

	ac := access.NewClassifier(rules)
	if ac.MemCopy, err = compile("flow.memcopy", c.Flow.MemCopy, ac.MemCopy); err != nil {
		return nil, err
	}
	return ac, nil
}

// TrackedFields returns the inline fields followed by those of the fields
// file, if any.
func (c *Config) TrackedFields() ([]access.FieldRef, error) {
	refs, err := parseFields(c.Access.Fields)
	if err != nil {
		return nil, err
	}
	if c.Access.FieldsFile == "" {
		return refs, nil
	}
	path := c.Access.FieldsFile
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("access.fields_file: %w", err)
	}
	defer f.Close()
	more, err := access.ParseFieldRefs(f)
	if err != nil {
		return nil, fmt.Errorf("access.fields_file %s: %w", path, err)
	}
	return append(refs, more...), nil
}

func parseFields(entries []string) ([]access.FieldRef, error) {
	refs, err := access.ParseFieldRefs(strings.NewReader(strings.Join(entries, "\n")))
	if err != nil {
		return nil, fmt.Errorf("access.fields: %w", err)
	}
	return refs, nil
}

// Intrinsic returns the matcher of functions excluded as call-graph
// starting points.
func (c *Config) Intrinsic() (pattern.Matcher, error) {
	return compile("calls.intrinsic", c.Calls.Intrinsic, pattern.Intrinsic)
}

// LoopDetector returns the configured heavy loop detector.
func (c *Config) LoopDetector() (*heavyloop.Detector, error) {
	d := heavyloop.NewDetector()
	if n := c.Loops.MinInstructions; n != nil {
		if *n < 0 {
			return nil, fmt.Errorf("loops.min_instructions: must not be negative, got %d", *n)
		}
		d.MinInstructions = *n
	}
	var err error
	if d.LibraryFunction, err = compile("loops.library_function", c.Loops.LibraryFunction, d.LibraryFunction); err != nil {
		return nil, err
	}
	if d.LibraryLocation, err = compile("loops.library_location", c.Loops.LibraryLocation, d.LibraryLocation); err != nil {
		return nil, err
	}
	return d, nil
}
