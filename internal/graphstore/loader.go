// Package graphstore exports the call graph of a module to Neo4j.
//
// Functions become (:NearFunc {name}) nodes and resolved call sites
// [:CALLS {site}] relationships. Rows are sent in batches with UNWIND:
//
//	UNWIND $batch AS row
//	MERGE (n:NearFunc {name: row.name})
//	SET n.file = row.file, ...
package graphstore

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultBatchSize is the number of rows sent per query by default.
const DefaultBatchSize = 1000

// execFunc runs one Cypher statement.
type execFunc func(ctx context.Context, cypher string, params map[string]any) error

// Loader loads snapshots into a Neo4j database.
type Loader struct {
	driver neo4j.DriverWithContext
	exec   execFunc
	// BatchSize limits the rows per UNWIND query. Zero or less uses
	// DefaultBatchSize.
	BatchSize int
}

// NewLoader creates a loader for the database at uri. No connection is made
// until the first query; use Verify to check connectivity early.
func NewLoader(uri, user, password string) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	l := &Loader{driver: driver}
	l.exec = func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer)
		return err
	}
	return l, nil
}

// Close releases the driver.
func (l *Loader) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}

// Verify checks that the database is reachable.
func (l *Loader) Verify(ctx context.Context) error {
	if err := l.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("connect to neo4j: %w", err)
	}
	return nil
}

func (l *Loader) run(ctx context.Context, cypher string, params map[string]any) error {
	if err := l.exec(ctx, cypher, params); err != nil {
		return fmt.Errorf("run %.40q: %w", cypher, err)
	}
	return nil
}

// runBatches runs cypher once per batch of rows, bound to $batch.
func (l *Loader) runBatches(ctx context.Context, cypher string, rows []map[string]any) error {
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := l.run(ctx, cypher, map[string]any{"batch": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Schema
// =============================================================================

// Clean removes previously loaded functions and calls.
func (l *Loader) Clean(ctx context.Context) error {
	log.Println("Cleaning existing call graph data...")
	queries := []string{
		"MATCH ()-[r:CALLS]->() DELETE r",
		"MATCH (n:NearFunc) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := l.run(ctx, q, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes ensures the lookup index on function names exists.
func (l *Loader) CreateIndexes(ctx context.Context) error {
	log.Println("Creating indexes...")
	return l.run(ctx, "CREATE INDEX near_func_name IF NOT EXISTS FOR (n:NearFunc) ON (n.name)", nil)
}

// =============================================================================
// Data
// =============================================================================

// Load creates the indexes and upserts every function and call of s.
func (l *Loader) Load(ctx context.Context, s *Snapshot) error {
	if err := l.CreateIndexes(ctx); err != nil {
		return err
	}
	if err := l.LoadFuncs(ctx, s.Funcs); err != nil {
		return err
	}
	return l.LoadCalls(ctx, s.Calls)
}

// LoadFuncs upserts NearFunc nodes.
func (l *Loader) LoadFuncs(ctx context.Context, funcs []FuncNode) error {
	log.Printf("Loading %d functions...", len(funcs))
	return l.runBatches(ctx,
		`UNWIND $batch AS row
		 MERGE (n:NearFunc {name: row.name})
		 SET n.file = row.file, n.declaration = row.declaration,
		     n.intrinsic = row.intrinsic, n.privileged = row.privileged`,
		funcRows(funcs),
	)
}

// LoadCalls upserts CALLS relationships. Call sites between the same pair
// of functions collapse into one relationship listing every site.
func (l *Loader) LoadCalls(ctx context.Context, calls []CallEdge) error {
	log.Printf("Loading %d call edges...", len(calls))
	return l.runBatches(ctx,
		`UNWIND $batch AS row
		 MERGE (caller:NearFunc {name: row.caller})
		 MERGE (callee:NearFunc {name: row.callee})
		 MERGE (caller)-[r:CALLS]->(callee)
		 SET r.sites = row.sites`,
		callRows(calls),
	)
}

func funcRows(funcs []FuncNode) []map[string]any {
	rows := make([]map[string]any, 0, len(funcs))
	for _, fn := range funcs {
		rows = append(rows, map[string]any{
			"name":        fn.Name,
			"file":        fn.File,
			"declaration": fn.Declaration,
			"intrinsic":   fn.Intrinsic,
			"privileged":  fn.Privileged,
		})
	}
	return rows
}

// callRows groups call sites by (caller, callee), keeping first-seen order.
func callRows(calls []CallEdge) []map[string]any {
	type pair struct{ caller, callee string }
	index := make(map[pair]int)
	var rows []map[string]any
	for _, c := range calls {
		p := pair{c.Caller, c.Callee}
		i, ok := index[p]
		if !ok {
			i = len(rows)
			index[p] = i
			rows = append(rows, map[string]any{
				"caller": c.Caller,
				"callee": c.Callee,
				"sites":  []string{},
			})
		}
		rows[i]["sites"] = append(rows[i]["sites"].([]string), c.Site)
	}
	return rows
}
