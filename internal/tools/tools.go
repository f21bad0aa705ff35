// Package tools exposes the mapper to MCP clients: dictionary lookups,
// one-shot page rewriting, local rule editing and daemon control.
package tools

import (
	"github.com/standardbeagle/gnm/internal/daemon"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DaemonTools binds the MCP handlers to a daemon.
type DaemonTools struct {
	d *daemon.Daemon
}

// NewDaemonTools creates the tool set for d.
func NewDaemonTools(d *daemon.Daemon) *DaemonTools {
	return &DaemonTools{d: d}
}

// Instructions describes the tool set for the MCP handshake.
const Instructions = `GitHub name mapper: resolves GitHub usernames to "username(nickname)"
display names and rewrites GitHub pages with them.

Available tools:
- resolve: Look up one or more usernames
- search: Filter the dictionary the way the @@ autocomplete does
- rewrite: Rewrite an HTML document with the current dictionary
- rule: Manage local rules (list, add, update, remove, import, export)
- sync: Fetch the remote developer list now
- toggle: Flip the master switch or individual features
- status: Daemon state, dictionary size and proxy statistics`

// RegisterAll adds every tool to server.
func RegisterAll(server *mcp.Server, dt *DaemonTools) {
	RegisterDictionaryTools(server, dt)
	RegisterRuleTool(server, dt)
	RegisterDaemonTools(server, dt)
}

// errorResult reports a tool-level failure to the client.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

