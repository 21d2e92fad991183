// Package config loads the sync server configuration from YAML.
//
// Config fields:
//   - HTTPPort           — port for the REST API, metrics, and websocket hub
//   - Auth.Mode          — "apikey" or "none"
//   - Auth.KeyEnv        — environment variable holding the expected API key
//   - Auth.Header        — HTTP header the key arrives in (default "X-API-Key")
//   - Doc.TTL            — idle time before an unattached document is evicted
//   - Doc.PersistPath    — SQLite file for snapshots; empty disables persistence
//   - Doc.FlushInterval  — how often dirty documents are flushed to disk
//   - Notify.Webhooks    — targets POSTed document lifecycle events
//   - Notify.Cooldown    — per-doc/event suppression window
//
// Load(path) applies defaults(), parses, then validate()s. Watch(ctx,
// path, onChange) hot-reloads the file via fsnotify, keeping the
// previous config when a reload fails. Secrets resolve from environment
// variables (key_env, url_env), never from the file itself.
package config
