// Command gateway runs the MCP tool-federation gateway: it exposes a
// single upstream MCP server over stdio, re-exporting tools discovered
// from downstream MCP servers it mounts on demand.
package main

func main() {
	Execute()
}
