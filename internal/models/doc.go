// Package models defines the entities persisted by tuttitracks and the request payloads that create them.
//
// Catalog entities mirror the remote music service and are cached locally:
//   - [Track] : track metadata with its [AudioFeatures]
//   - [Album], [Artist], [Genre] : catalog entities linked to tracks
//
// Library entities belong to a local [User]:
//   - [Playlist] : a locally ordered playlist, optionally mirrored remotely
//   - [PlaylistEntry] : one position in a playlist (0-based, duplicates allowed)
//   - [SyncJob] : the history of pushes of a playlist to the remote service
//
// Entities that are written through a repository implement [Model] and can be checked with Validate before persisting.
package models
