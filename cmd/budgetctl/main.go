package main

import (
	"os"

	"budgetblocks/cmd/budgetctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
