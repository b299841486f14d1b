// Package tasks implements the playlist operations shared by the CLI, the TUI and the HTTP server.
//
// # Components
//
//   - [PlaylistEngine] : local playlists and their ordered entries
//     (append, insert, move, delete by track or index) plus exports
//   - [Library] : caches remote tracks with their album, artists, genres and audio features
//   - [Syncer] : pushes local playlists to the remote service and records a sync job per push
//   - [Browser] : search, liked tracks, top tracks and remote playlists, cached as they are read
//   - [Accounts] : signup, login and linking a user to a remote account
//
// # Ordering
//
// Entries of a playlist always carry the indices 0..n-1. Every mutation runs in a single
// transaction under a per-playlist lock, so concurrent edits to the same playlist are serialized
// and a failed mutation leaves the order untouched.
//
// # Pushing
//
// The first push creates the remote playlist. Later pushes compare the stored snapshot with the
// remote one and fail with a [shared.ConflictError] when the playlist changed remotely, unless
// forced. [Syncer.PushAll] and [PlaylistEngine.BulkExport] run a rate-limited worker pool.
//
// # Progress Reporting
//
// Long running operations accept a channel of [ProgressUpdate]. Sends never block: an update is
// dropped when the receiver is not ready, and a nil channel disables reporting.
package tasks
