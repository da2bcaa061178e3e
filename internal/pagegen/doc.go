// Package pagegen defines the types and collaborator interfaces shared by the
// page-generation pipeline, the bulk-job orchestrator, the catalog stores and
// the HTTP API.
package pagegen
