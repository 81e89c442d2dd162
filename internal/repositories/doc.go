// Package repositories implements SQLite persistence for session credentials.
//
// [CredentialRepository] stores key/value pairs scoped by origin (scheme and host of the catalog
// API), so sessions for different backends never overwrite each other. Writes are upserts that
// stamp updated_at; reads of a missing key report [ErrCredentialNotFound].
package repositories
