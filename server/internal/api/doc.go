// Package api implements the HTTP REST API for mirrormap-server.
//
// New(store, sessions) returns an http.Handler that serves:
//
//	GET /api/v1/health       — liveness, resident docs, attached sessions
//	GET /api/v1/docs         — all resident documents
//	GET /api/v1/docs/{name}  — one document: revision plus per-object sizes
//
// All endpoints respond with Content-Type: application/json and return
// every error as {"error": "..."} with the matching status code. Routing
// runs on gorilla/mux; document names may contain slashes.
package api
