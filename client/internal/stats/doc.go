// Package stats polls a sync server's Prometheus /metrics endpoint and
// interprets the exposition for the ctl stats command.
//
// stats.go provides the Scraper: one HTTP GET parsed with expfmt into
// metric families, reduced to a Snapshot of raw totals. rates.go turns
// two Snapshots into per-minute rates, clamping counter resets to zero.
// API keys are injected by a round-tripper so every request carries the
// same header the server checks.
package stats
