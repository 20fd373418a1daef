// Package bridge exposes a child process speaking line-delimited JSON-RPC
// over standard input/output as an HTTP(+SSE) service.
//
// Clients either POST a request to /mcp and receive the correlated reply
// synchronously, or send fire-and-forget messages to /messages while
// consuming replies and notifications from the /sse stream. The backend
// command is resolved from an mcpServers configuration document or a flat
// command line, matching the conventions of MCP hosts.
//
// Most end-users interact with the compiled `mcp-bridge` binary whose
// source lives in the mcp-bridge directory, but the service can also be
// embedded programmatically via New.
package bridge
