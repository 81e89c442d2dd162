// Package store persists session credentials behind the [TokenStore] contract.
//
// Three implementations exist:
//   - [Persistent] : SQLite backed, scoped to an API origin, survives restarts
//   - [Memory] : in-process map for tests and ephemeral sessions
//   - [Nop] : stores nothing, used in non-interactive contexts
//
// No implementation surfaces errors. Storage failures are logged and read back as absence.
package store

// Kind names one of the persisted credential slots.
type Kind string

const (
	AccessToken     Kind = "auth_token"
	RefreshToken    Kind = "refresh_token"
	TokenExpiration Kind = "token_expiration"
)

// Kinds lists every slot, in the order they are cleared.
var Kinds = []Kind{AccessToken, RefreshToken, TokenExpiration}

// TokenStore is a key/value store for session credentials.
type TokenStore interface {
	Set(kind Kind, value string)
	Get(kind Kind) (string, bool)
	Clear()
}
