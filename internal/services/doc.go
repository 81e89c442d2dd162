// Package services implements HTTP clients for the catalog backend.
//
// [APIService] is the shared transport layer. It sends JSON, tags each request with an
// X-Request-ID, and unwraps the backend's {success, data, error} envelope. Failures surface as
// [*APIError] carrying the HTTP status (0 when no response arrived), so callers can branch with
// [errors.As] or [StatusCode].
//
// Built on top of it:
//   - [AuthClient] : login, refresh, registration and availability checks
//   - [AlbumService] : paginated listing, lookup, search and deletion of albums
//   - [ArtistService] : paginated listing and lookup of artists, bounded by [ArtistTimeout]
//
// None of these clients attach credentials themselves. Authorization is the job of the
// http.Client's transport (see the pipeline package), which keeps the auth endpoints and the
// catalog endpoints on the same client.
package services
