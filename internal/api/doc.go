// Package api hosts the HTTP server for the service mode. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs/{search,comment,auto-comment} to queue harvest runs.
//   - GET /v1/runs and /v1/runs/{run_id} to follow them.
package api
