// Package mcp exposes the lobby server's read-only REST API as Model Context
// Protocol tools.
//
// The client holds no game state. Every tool call is translated into an HTTP
// request against /api and the JSON response is rendered as text for the
// model. Tool arguments arrive as loosely typed JSON, so numeric and boolean
// arguments are coerced before being placed in the query string.
//
// The returned server can be served over stdio with server.ServeStdio or
// mounted over HTTP with server.NewStreamableHTTPServer.
package mcp
