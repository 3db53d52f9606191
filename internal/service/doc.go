// Package service coordinates the scene model with persistence, export and
// the event stream consumed by the HTTP layer.
//
// # Services
//
// ProjectService owns one open Scene. Every mutation goes through it, is
// serialised with a mutex and, on success, is published on the EventBus.
// Failed mutations leave the scene untouched and publish nothing.
//
// ExportService renders snapshots to PDF on a worker goroutine. An export
// only ever sees the snapshot it was started with, so edits made while it
// runs never reach the document being written.
//
// # Event System
//
// Events are delivered without blocking: a subscriber whose channel is full
// misses the event. The SSE hub forwards them to browsers.
package service
