// Package api hosts the HTTP server and REST handlers. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /sitemap.xml and /v1/portfolios/{slugOrID} for public pages.
//   - GET /v1/screenshot for on-demand captures.
//   - /v1/projects, /v1/profile and /v1/stripe for authenticated owners.
package api
