// Package seo scores rendered pages and rewrites their document head with
// indexing directives.
package seo
