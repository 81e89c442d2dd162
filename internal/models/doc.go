// Package models defines the data transfer objects exchanged with the catalog backend.
//
// The package contains three groups of types:
//
// 1. Authentication payloads
//   - [Credentials] : username/password sent to the login endpoint
//   - [Registration] : new account data sent to the registration endpoint
//   - [AuthResponse] : tokens returned by login, refresh and registration
//   - [User] : identity decoded from the access token, never persisted
//
// 2. Catalog entities
//   - [Album], [Artist], [ArtistSummary]
//   - [Page] : one page of a paginated listing
//
// 3. Realtime payloads
//   - [AlbumNotification] : album change pushed over the notification channel
//
// [Envelope] wraps every backend response body as {success, data, error}.
package models
