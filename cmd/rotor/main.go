package main

import (
	"os"

	"github.com/wonny/rotor/cmd/rotor/commands"
)

// main is the entry point for the rotor CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/rotor [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
