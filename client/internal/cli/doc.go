// Package cli implements all sub-commands that make up the mirrormap
// ctl command-line interface. Each file in this directory registers a
// single sub-command (get, set, del, keys, clear, dump, watch, stats). The
// plumbing that is shared between commands, such as configuration
// loading and session dialing, is located in shared.go.
package cli
