// Package photos stores the photo bytes a job was captured from.
//
// [Cache] keeps recently used photos in memory in front of a [Backing]: a directory on disk
// ([DirBacking]) or an S3-compatible bucket ([MinioBacking]). Components receive the cache
// explicitly; there is no process-wide instance.
package photos
