// Package models defines the domain entities shared by the discx packages.
//
// The package contains two categories of types:
//
// 1. Catalog and streaming DTOs: lightweight structs decoded from external services
//   - [Release] : a catalog release (MusicBrainz, or synthesized from Discogs)
//   - [AlbumMatch] : a ranked candidate shown to the user for confirmation
//   - [Album] and [Track] : streaming-service album search results and tracks
//   - [WriteProbe] : diagnostic outcome of a playlist write-access probe
//
// 2. Persistent entities: records kept in the durable store
//   - [Job] : one photographed record moving through the identification pipeline
//   - [Settings] : destination playlist, market and match threshold
//   - [AuthSession] : OAuth credential material, stored encrypted
//   - [DedupeEntry] : a (playlist, track) pair already written
//
// Persistent entities implement [Model] so repositories can validate before writing.
package models
