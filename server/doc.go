// Package server exposes the bridge engine over HTTP: /mcp for
// request/response, /messages for fire-and-forget sends, /sse for the
// broadcast stream and /health for liveness. Handlers are thin adapters;
// all coordination lives in the backend package.
package server
