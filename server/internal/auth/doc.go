// Package auth provides authentication middleware for mirrormap-server.
//
// Middleware(mode, header, key) returns an HTTP middleware that validates
// the API key carried in the named request header. It guards the REST
// routes and the websocket upgrade alike; a websocket client that fails
// auth never reaches the attach handshake.
//
// When mode != "apikey" or key == "", all requests pass through (useful
// for local development with auth disabled). When the key is incorrect or
// absent, the middleware responds 401 without invoking the wrapped
// handler.
package auth
