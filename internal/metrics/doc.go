/*
Package metrics exposes recorder statistics to Prometheus.

FileCollector is the downstream consumer of a stats.Recorder: on every
scrape it reads the live aggregates and emits point-in-time const metrics.
Because the recorder guarantees only per-field consistency, a scrape may
combine values from slightly different instants; totals are still exact
once recording quiesces.

Server wraps a prometheus registry in the usual /metrics HTTP endpoint.
*/
package metrics
