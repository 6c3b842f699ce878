// Package resolver turns a captured job into a chosen release and streaming album.
//
// [Resolver.Resolve] tries three paths in order and stops at the first that produces a match:
//  1. barcode: each candidate from [BarcodeCandidates] is looked up in MusicBrainz, then Discogs
//  2. text: OCR lines are parsed by [ParseCandidate] and searched in MusicBrainz
//  3. visual: the photo's fingerprint is compared with those of previously confirmed releases
//
// A unique match is enriched with the streaming album and the job moves to matching. Several
// text matches, or any visual match, move the job to needsConfirm for a human decision.
// Nothing matching fails with [shared.ErrNoConfidentMatch].
//
// Resolve receives the job by value and returns the updated copy, so concurrent resolutions
// never share a job.
package resolver
