// Package services contains the outbound HTTP clients.
//
// # Request funnel
//
// [APIService] performs every raw request. It logs the endpoint and status, truncates error bodies,
// and returns transport failures wrapped in [shared.ErrNetwork] with the cause preserved so
// [shared.IsTransient] can classify them. Non-2xx responses become [*APIError], which unwraps to the
// matching sentinel (401 to auth required, 403 to insufficient permissions, 404 to not found,
// everything else to network failure).
//
// # Spotify client
//
// [SpotifyClient] authorizes each request through a [TokenProvider] and implements:
//   - [SpotifyClient.SearchAlbum] : ranked album search with progressively looser queries
//   - [SpotifyClient.AlbumTracks] : every track of an album, following pagination
//   - [SpotifyClient.AddTracks] : chunked playlist writes with scope preflight, 429 back-off and 403 triage
//   - [SpotifyClient.ProbeWriteAccess] : a side-effect-free write-access diagnostic
//
// Playlist references are normalized by [NormalizePlaylistID], which accepts bare ids, spotify: URIs and share URLs.
package services
