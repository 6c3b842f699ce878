// Package tasks runs captured jobs through resolution and into the destination playlist.
//
// # Pipeline
//
// A [Runner] owns every job. [Runner.ProcessAll] walks the job list and, for each job:
//
//  1. resolves it (pending, failed or matching jobs) through the resolver
//  2. stops in needsConfirm when a human decision or a destination playlist is missing
//  3. fetches the album's tracks, reserves the ones not yet added to the playlist in the
//     [DedupeSet], writes them, and records them durably
//
// Any error marks that job failed with a readable message; it never stops the batch.
//
// # Progress Reporting
//
// Subscribers registered with [Runner.Subscribe] receive [ProgressUpdate] values. Sends use
// select with default, so a slow subscriber misses updates instead of blocking the pipeline.
// [Runner.Snapshot] returns copies of all jobs at any time.
//
// # Background processing
//
// [IntervalTrigger] calls [Runner.Resume] on an interval and whenever [IntervalTrigger.Request]
// is called, coalescing bursts of requests into one run. Resume reloads jobs and the dedupe set
// from storage and processes whatever is pending, so running it any number of times is safe.
package tasks
