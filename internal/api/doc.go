// Package api hosts the HTTP server, middleware, and REST handlers for the
// scraper. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to run the pipeline synchronously; ?format=xlsx or
//     ?format=csv streams the spreadsheet instead of JSON.
//   - GET /v1/runs and /v1/runs/{run_id} for run history via the
//     RunRepository interface.
package api
