// Package progress carries bulk-job progress events from workers to pluggable
// sinks. The Hub buffers events on a background goroutine, batches them by
// size or age, and never blocks the emitting worker.
package progress
