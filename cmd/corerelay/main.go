// Package main is the entry point for the corerelay application.
package main

import (
	"os"

	"github.com/kestrelstream/corerelay/cmd/corerelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
