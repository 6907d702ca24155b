// Command nearflow runs the nearflow passes over Go packages.
//
// Usage:
//
//	nearflow -nearflow.config=nearflow.yaml -structaccess.fields='example.com/bank.Contract 1' ./...
//
// Or as a vet tool:
//
//	go vet -vettool=$(which nearflow) ./...
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/mpyw/nearflow"
	"github.com/mpyw/nearflow/passes/complexloop"
	"github.com/mpyw/nearflow/passes/privileged"
	"github.com/mpyw/nearflow/passes/structaccess"
)

func main() {
	multichecker.Main(
		nearflow.Analyzer,
		complexloop.Analyzer,
		privileged.Analyzer,
		structaccess.Analyzer,
	)
}
