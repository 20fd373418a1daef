// Package backend implements the bridge engine: supervision of a child
// process speaking line-delimited JSON-RPC over stdio, serialized outbound
// writes, a single background reader dispatching inbound lines, request to
// reply correlation by id and broadcast fan-out to stream subscribers.
//
// The engine never interprets payloads beyond extracting the id value;
// messages travel through it verbatim.
package backend
