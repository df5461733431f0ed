// Command statementctl runs the ingestion pipeline on local statement files
// against an in-memory ledger. It is a developer tool for checking how a
// bank's statements unlock, parse and categorize.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
