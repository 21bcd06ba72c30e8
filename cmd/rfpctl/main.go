// Package main is the entry point for the rfpctl CLI tool.
package main

import (
	"os"

	"github.com/keen-violet-ibis/rfphub/cmd/rfpctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
