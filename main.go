// Package main is the entry point for the actionengine packet action engine.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/actionengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
