// Command mcp-gate runs the OAuth gate in front of an MCP server.
package main

import (
	"os"

	"github.com/giantswarm/mcp-gate/cmd/mcp-gate/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
