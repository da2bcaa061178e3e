// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz / readyz for Kubernetes health checks.
//   - GET /metrics for Prometheus scraping.
//   - /v1/templates for template CRUD and advisory validation.
//   - /v1/pages for single page generation.
//   - /v1/bulk for spreadsheet uploads that queue bulk jobs.
//   - /v1/jobs/stats and /v1/jobs/recent for dashboards.
//
// Every /v1 route requires a bearer JWT whose subject is the owner ID.
package api
