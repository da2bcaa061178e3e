// Package main hosts the page generator entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, template, page and bulk job endpoints. Every /v1 route
//     requires a bearer JWT whose subject identifies the owner.
//   - Single pages: requests render a template through internal/pipeline, which evaluates SEO, injects robots meta,
//     assigns a unique slug, uploads to object storage and persists the page in the catalog.
//   - Bulk jobs: uploaded CSV/XLSX rows are stored as a queued job and handed to the work queue. With
//     queue.backend=memory a dispatcher fans deliveries out to in-process workers; with queue.backend=asynq the
//     "worker" mode consumes tasks from Redis. Workers generate each row, track per-row outcomes so redeliveries
//     resume, upload a ZIP archive and publish a completion event.
//   - Persistence: the catalog lives in Postgres (goose migrations embedded) or in memory when no DSN is set; pages
//     and archives go to memory, local disk, GCS, S3 or MinIO.
//   - Observability: zap logs carry job and owner IDs; Prometheus collects HTTP, page and job metrics; the progress
//     hub batches job events to log, Prometheus and Redis sinks; OpenTelemetry spans wrap page generation.
//
// Usage:
//
//	pagegen [-config config.yaml] serve    # HTTP API (plus in-process workers for the memory queue)
//	pagegen [-config config.yaml] worker   # asynq consumer
//	pagegen [-config config.yaml] migrate  # apply catalog migrations
//
// Configure with PAGEGEN_* environment variables (for example PAGEGEN_AUTH_JWT_SECRET, PAGEGEN_DATABASE_DSN,
// PAGEGEN_QUEUE_BACKEND) or an optional .env file. PORT overrides server.port for Cloud Run.
package main
