// Package auth manages the client's authenticated session.
//
// [Manager] is the single owner of session state. Tokens live in a [store.TokenStore]; the
// manager mirrors them into an in-memory authenticated flag and the [models.User] decoded from
// the access token, which subscribers observe through [Manager.Users].
//
// # Refresh
//
// Two refresh variants exist:
//   - [Manager.RefreshToken] logs out on any failure. The proactive timer uses it.
//   - [Manager.RefreshTokenSilent] never logs out. The request pipeline uses it and decides
//     for itself what a failure means.
//
// Every successful login, registration or refresh re-arms a one-shot timer that fires
// [RefreshLeeway] before the token expires. A manager created over a store that already holds
// a session restores the flag, the user and the timer.
//
// # Guards
//
// [Guard] answers route questions for hosts that navigate: [Guard.RequireAuth] redirects to the
// login route with a returnUrl, [Guard.LoginOnly] sends signed-in users to [HomeRoute].
//
// # Token decoding
//
// [DecodeUser] is best effort. The signature is never verified on the client, and a payload
// that cannot be read simply yields no user.
package auth
