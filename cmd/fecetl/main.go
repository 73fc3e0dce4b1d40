// Package main is the entry point for the fecetl binary.
package main

import (
	"os"

	cli "fec-lake/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
