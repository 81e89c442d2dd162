// Package pipeline authorizes outgoing catalog requests and recovers from expired tokens.
//
// [Transport] is an [http.RoundTripper]. For every request that is not an auth endpoint it
// attaches the stored access token as a bearer header. When the backend answers 401 or 403, the
// transport asks its [Coordinator] for a usable token and replays the request once with it.
//
// The [Coordinator] guarantees at most one refresh call in flight. A request that fails while
// a refresh is running waits for that refresh's outcome instead of starting another. A request
// that was sent with a token which has since been replaced is retried with the current token
// and no refresh at all. When the refresh itself fails, the session is logged out and every
// waiter receives the error.
package pipeline
