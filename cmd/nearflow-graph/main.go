// Command nearflow-graph lowers the packages of a Go module, runs the
// privilege query over them and loads the resulting call graph into Neo4j.
//
// Usage:
//
//	nearflow-graph -neo4j-pass=secret -dir=./contract -config=nearflow.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/config"
	"github.com/mpyw/nearflow/internal/frontend"
	"github.com/mpyw/nearflow/internal/graphstore"
)

func main() {
	var (
		neo4jURI   = flag.String("neo4j-uri", "bolt://localhost:7687", "Neo4j bolt URI")
		neo4jUser  = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", "", "Neo4j password")
		clean      = flag.Bool("clean", false, "Clean existing call graph data before loading")
		dir        = flag.String("dir", ".", "Module root directory")
		configPath = flag.String("config", "", "nearflow YAML configuration")
		depth      = flag.Int("depth", -1, "Privilege callee depth; negative uses the configured depth")
		batchSize  = flag.Int("batch", graphstore.DefaultBatchSize, "Rows per UNWIND query")
	)
	flag.Parse()

	if *neo4jPass == "" {
		fmt.Fprintln(os.Stderr, "Error: -neo4j-pass is required")
		flag.Usage()
		os.Exit(1)
	}

	absDir, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatal(err)
	}
	modulePath, err := detectModulePath(absDir)
	if err != nil {
		log.Fatalf("Cannot detect Go module: %v", err)
	}
	log.Printf("Module: %s", modulePath)

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	log.Println("Loading packages...")
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypesSizes,
		Dir: absDir,
	}, "./...")
	if err != nil {
		log.Fatalf("Failed to load packages: %v", err)
	}
	if n := packages.PrintErrors(pkgs); n > 0 {
		log.Printf("Warning: %d package errors (continuing anyway)", n)
	}
	log.Printf("Loaded %d packages", len(pkgs))

	log.Println("Building SSA...")
	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	for _, p := range ssaPkgs {
		if p != nil {
			p.Build()
		}
	}
	fns := projectFunctions(prog, modulePath)

	mod, _ := frontend.Build(prog.Fset, fns)
	k, err := nearflow.New(mod, cfg)
	if err != nil {
		log.Fatal(err)
	}
	d := *depth
	if d < 0 {
		d = cfg.PrivilegeDepth()
	}
	ctx := context.Background()
	privileged, err := k.PrivilegedFunctions(ctx, d)
	if err != nil {
		log.Fatal(err)
	}
	snapshot := graphstore.Collect(k.Graph, privileged)
	log.Printf("Collected: %d functions (%d privileged), %d calls",
		len(snapshot.Funcs), len(privileged), len(snapshot.Calls))

	loader, err := graphstore.NewLoader(*neo4jURI, *neo4jUser, *neo4jPass)
	if err != nil {
		log.Fatal(err)
	}
	defer loader.Close(ctx)
	loader.BatchSize = *batchSize

	if err := loader.Verify(ctx); err != nil {
		log.Fatal(err)
	}
	if *clean {
		if err := loader.Clean(ctx); err != nil {
			log.Fatal(err)
		}
	}
	if err := loader.Load(ctx, snapshot); err != nil {
		log.Fatal(err)
	}

	log.Println("Done! Graph loaded into Neo4j.")
	log.Println("")
	log.Println("Useful Cypher queries:")
	log.Println("  // Privileged functions")
	log.Println("  MATCH (f:NearFunc {privileged: true}) RETURN f.name, f.file")
	log.Println("")
	log.Println("  // Callers of privileged functions")
	log.Println("  MATCH (c:NearFunc)-[:CALLS]->(f:NearFunc {privileged: true}) RETURN c.name, f.name")
}

// projectFunctions returns the non-synthetic functions of the module's own
// packages, closures included, sorted by name.
func projectFunctions(prog *ssa.Program, modulePath string) []*ssa.Function {
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Synthetic != "" || fn.Pkg == nil {
			continue
		}
		path := fn.Pkg.Pkg.Path()
		if path != modulePath && !strings.HasPrefix(path, modulePath+"/") {
			continue
		}
		fns = append(fns, fn)
	}
	slices.SortFunc(fns, func(a, b *ssa.Function) int {
		return strings.Compare(a.String(), b.String())
	})
	return fns
}

// detectModulePath reads the go.mod file in dir and returns the module path.
func detectModulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("cannot read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("module directive not found in go.mod")
	}
	return path, nil
}
