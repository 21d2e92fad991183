// Package metrics exposes the server's operational counters in Prometheus
// text exposition format at /metrics. Counters accumulate in a Set; the
// gauges read live values (attached sessions, resident documents) at scrape
// time through injected reader funcs.
package metrics
