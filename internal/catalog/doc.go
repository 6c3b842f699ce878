// Package catalog implements the music-catalog clients used to identify releases.
//
// [MusicBrainzClient] is the source of truth for artist and title. It looks releases up by barcode,
// searches with field queries built from OCR heuristics, and fetches single releases by id.
// [DiscogsClient] is a barcode fallback whose results are converted into [models.Release] values.
//
// Both clients throttle with a [rate.Limiter] (MusicBrainz asks for one request per second) and
// memoize decoded results in a [Cache] keyed by the request signature. [MemoryCache] is the default.
package catalog
