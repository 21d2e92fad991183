// Package config loads the ctl client configuration file.
//
// Load(path) reads the YAML file, applies defaults, and validates what
// is present. The file is optional — every field can also arrive via
// command-line flags, so validation rejects values that are wrong, not
// values that are missing. Default() returns the flag-only baseline.
//
// Secrets never live in the file: auth.key_env names the environment
// variable holding the API key, resolved at use via AuthConfig.Key().
// MetricsURL derives the server's /metrics address from the websocket
// endpoint for the stats command.
package config
