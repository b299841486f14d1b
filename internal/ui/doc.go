// Package ui implements an interactive playlist editor using bubbletea's Elm architecture.
//
// The editor moves through these views:
//  1. [PlaylistListView] : Browse the user's local playlists
//  2. [TrackListView] : Reorder (K/J) and delete (d) entries, or push (p)
//  3. [ConfirmView] : Confirm the push
//  4. [PushView] : Monitor progress updates from the push
//  5. [ResultView] : Show the remote playlist and snapshot, or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Edits go through the playlist engine, so the terminal and the HTTP API see the same ordering rules.
// A push that fails because the playlist changed remotely can be retried with f, which overwrites it.
package ui
