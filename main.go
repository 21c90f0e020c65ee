package main

import (
	"fmt"
	"os"

	"clip-studio/internal/cmd"
	"clip-studio/internal/memory"
)

func main() {
	// Configure GOMEMLIMIT before any significant allocations.
	memory.ConfigureFromEnv()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
