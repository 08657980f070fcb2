// Package main provides the CLI entrypoint for schemamap.
//
// schemamap resolves the inconsistent column headers of business datasets
// to a fixed set of canonical types:
//   - Proposes candidates from alias, fuzzy and semantic rules
//   - Reuses confirmed mappings from a knowledge base
//   - Escalates uncertain headers to a language model
//   - Reports which analytics the renamed table can feed
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
