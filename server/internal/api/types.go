package api

import "time"

// HealthResponse is the GET /api/v1/health body.
type HealthResponse struct {
	Status        string `json:"status"`
	Docs          int    `json:"docs"`
	Sessions      int    `json:"sessions"`
	UptimeSeconds int64  `json:"uptime_s"`
}

// DocResponse is the payload for GET /api/v1/docs/{name}.
type DocResponse struct {
	Name      string          `json:"name"`
	Rev       uint64          `json:"rev"`
	Sessions  int             `json:"sessions"`
	UpdatedAt time.Time       `json:"updated_at"`
	Objects   []ObjectSummary `json:"objects"`
}

// ObjectSummary describes one composite object without its payload.
type ObjectSummary struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Size int    `json:"size"`
}

// errorResponse is the JSON body every error path responds with.
type errorResponse struct {
	Error string `json:"error"`
}
