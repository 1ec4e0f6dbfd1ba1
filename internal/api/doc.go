// Package api hosts the status HTTP server exposed while a harvest runs.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run counters.
//   - GET /v1/run for the run identity.
package api
