// Package main provides the entry point for the esmigrate CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/esmigrate/cmd/esmigrate/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
