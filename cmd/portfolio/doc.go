// Package main hosts the portfolio service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the public portfolio and sitemap, the on-demand
//     screenshot endpoint, the payment webhook, and bearer-authenticated owner routes for projects, profile
//     customization, and billing.
//   - Ingestion: adding a project fetches the page with the Colly fetcher, resolves title, description, preview
//     image and favicon with goquery, then walks the screenshot chain (hosted APIs, optional headless Chrome, SVG
//     placeholder). A metadata failure aborts; a screenshot failure only leaves the screenshot empty.
//   - Persistence: Postgres (pgx + squirrel) when database.dsn is set, otherwise an in-memory store. Images go to
//     GCS, a local directory served at /media/, or memory.
//   - Billing: Stripe checkout and webhooks keep the premium flag current. Redeliveries are deduplicated through
//     Redis when redis.addr is set, otherwise per process.
//   - Fanout: a project.created event is published to Pub/Sub when a topic is configured.
//   - Plumbing: Viper config from file and PORTFOLIO_* env vars; zap logging with optional lumberjack rotation;
//     Prometheus metrics at /metrics.
//
// Quick checklist:
//   - Required: PORTFOLIO_AUTH_JWT_SECRET.
//   - Optional: PORTFOLIO_DATABASE_DSN, PORTFOLIO_REDIS_ADDR, PORTFOLIO_STORAGE_BACKEND, PORTFOLIO_STRIPE_SECRET_KEY,
//     PORTFOLIO_SCREENSHOT_SCREENSHOTONE_ACCESS_KEY, PORTFOLIO_PUBSUB_PROJECT_ID / TOPIC_NAME.
//   - Run locally: go run ./cmd/portfolio -config config.yaml (or rely solely on env overrides).
//   - Cloud Run: the server listens on PORT and drains on SIGTERM.
package main
