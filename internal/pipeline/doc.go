// Package pipeline turns a template plus variable values into a stored,
// catalogued page: render, slug assignment, SEO evaluation, robots meta
// injection, upload and persistence. The single-page API and the bulk worker
// both go through Generate.
package pipeline
