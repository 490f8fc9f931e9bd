// ABOUTME: Standalone MCP server binary for artmatch with stdio transport
// ABOUTME: Same server as 'artmatch mcp', for clients that launch a dedicated executable
package main

import (
	"fmt"
	"os"

	"github.com/harper/artmatch/cmd/artmatch/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	cmd := commands.NewMCPCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
