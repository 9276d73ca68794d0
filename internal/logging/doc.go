// Package logging configures structured slog output for reposcout.
//
// CLI commands log to stderr. The MCP server owns stdout for JSON-RPC, so in
// serve mode logs go only to a rotating JSON file under ~/.reposcout/logs/,
// which `reposcout logs` can tail.
package logging
