// Package tasks runs long catalog operations with progress reporting.
//
// # Bulk Export
//
// [Exporter.BulkExport] writes many albums to disk:
//
//  1. Resolves the album set, either the given ids (fetched one by one under a rate limit)
//     or the whole catalog in one request
//  2. Hands each album to a fixed pool of workers
//  3. Each worker writes the album as JSON or as a Markdown directory with its cover
//  4. Writes export_manifest.json summarizing every success and failure
//
// A failed album never aborts the run; it is recorded in the manifest.
//
// # Progress Reporting
//
// Operations accept an optional progress channel. Each [ProgressUpdate] carries a phase, step
// counters and a display message. Sends use select with default so a slow or absent reader
// never blocks the export.
package tasks
