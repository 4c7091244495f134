// Package main provides the entry point for the coatseek CLI.
package main

import (
	"os"

	"github.com/coatseek/coatseek/cmd/coatseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
