package privileged_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/handoff"
	"github.com/mpyw/nearflow/passes/privileged"
)

func setFlag(t *testing.T, a *analysis.Analyzer, name, value string) {
	t.Helper()
	old := a.Flags.Lookup(name).Value.String()
	if err := a.Flags.Set(name, value); err != nil {
		t.Fatalf("Flags.Set(%s): %v", name, err)
	}
	t.Cleanup(func() { _ = a.Flags.Set(name, old) })
}

func useGoConfig(t *testing.T) string {
	t.Helper()
	testdata := analysistest.TestData()
	setFlag(t, nearflow.Analyzer, "config", filepath.Join(testdata, "go.yaml"))
	return testdata
}

func TestAnalyzer(t *testing.T) {
	testdata := useGoConfig(t)
	results := analysistest.Run(t, testdata, privileged.Analyzer, "privileged")

	store, ok := results[0].Result.(*handoff.Store)
	if !ok {
		t.Fatalf("Result = %T, want *handoff.Store", results[0].Result)
	}
	var names []string
	for _, r := range store.Records() {
		names = append(names, r.Function)
		if diff := cmp.Diff([]string{"privileged/contract.go"}, r.Extra); diff != "" {
			t.Errorf("record %q extra (-want;got+): %s", r.Function, diff)
		}
	}
	want := []string{
		"(*privileged.Contract).assertOwner",
		"(*privileged.Contract).Withdraw",
		"(*privileged.Contract).Pause",
		"(*privileged.Contract).Emergency",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("records (-want;got+): %s", diff)
	}
}

func TestAnalyzer_Out(t *testing.T) {
	testdata := useGoConfig(t)
	out := filepath.Join(t.TempDir(), "privileged.txt")
	setFlag(t, privileged.Analyzer, "out", out)

	analysistest.Run(t, testdata, privileged.Analyzer, "privileged")

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	store, err := handoff.Read(f)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	for _, name := range []string{"(*privileged.Contract).assertOwner", "(*privileged.Contract).Pause"} {
		if !store.Has(name) {
			t.Errorf("output missing %s", name)
		}
	}
	r, _ := store.Get("(*privileged.Contract).Withdraw")
	if got, want := r.String(), "(*privileged.Contract).Withdraw@privileged/contract.go"; got != want {
		t.Errorf("Withdraw record = %q, want %q", got, want)
	}
}
