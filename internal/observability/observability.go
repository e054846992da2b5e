// Package observability provides structured logging, Prometheus metrics
// and health checking for pkgwatch.
//
// Key features:
// - JSON logging with UTC timestamps and configurable levels
// - Prometheus metrics for upstream calls, cache refreshes, merging and the refresh queue
// - A collector exposing cache and subscription totals read from the state store
// - HTTP endpoints for /metrics, /health and /ready
package observability
