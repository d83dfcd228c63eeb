// Package main is the entry point for the polite CLI binary.
package main

import (
	"os"

	"polite/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
