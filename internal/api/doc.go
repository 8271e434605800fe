// Package api provides the HTTP and WebSocket interface to the hub.
//
// The server exposes a versioned REST API under /api/v1 for entity
// queries and commands, config entry management, configuration flows,
// and authentication, plus a WebSocket endpoint for real-time entity
// event streaming.
//
// Authentication uses JWT bearer tokens obtained from POST
// /api/v1/auth/login. WebSocket connections authenticate with a
// short-lived single-use ticket (POST /api/v1/auth/ws-ticket) passed
// as a query parameter, so the bearer token never appears in a URL.
//
// All responses are JSON. Errors follow a uniform envelope:
//
//	{"error": {"code": "not_found", "message": "entity not found"}}
package api
