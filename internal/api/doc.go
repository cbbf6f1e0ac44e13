// Package api hosts the HTTP server, middleware, and REST handlers for the feed.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/groups and /v1/groups/{group}/readings for dashboard reads.
//   - DELETE /v1/groups/{group}/cache and /v1/cache to force a fresh fetch.
package api
