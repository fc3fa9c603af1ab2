// Package main is the entry point for the palstore CLI.
package main

import (
	"os"

	"github.com/runger/palstore/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
