// Package repositories implements SQL persistence for all domain entities on top of sqlx.
//
// Queries are written with "?" placeholders and rebound for the active driver, so the same repository code runs on
// SQLite and PostgreSQL. Every repository accepts a [Querier], which is satisfied by both *sqlx.DB and *sqlx.Tx; code
// that needs several writes to succeed together runs them through [WithTx].
//
// Key Implementations:
//   - [UserRepository] : local accounts, password hashes and linked OAuth2 tokens
//   - [CatalogRepository] : cached tracks, albums, artists and genres with audio features
//   - [PlaylistRepository] : playlist metadata and remote sync state
//   - [PlaylistTrackRepository] : ordered playlist entries and the index shift primitives
//   - [SyncJobRepository] : history of playlist pushes
package repositories
