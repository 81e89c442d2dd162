// Package server provides the HTTP routing, middleware and handlers for the local companion
// service started by `catx serve`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so GET /login and POST /login
// are separate routes. Route-level middleware passed to [BasicRouter.Handle] runs inside the router-wide stack.
//
// # Route Guards
//
// [RequireAuth] and [LoginOnly] adapt [auth.Guard] to middleware. A protected route visited without a stored
// session answers 302 to /login?returnUrl=<original URL>; the login route visited with one answers 302 to /albums.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [SessionHandler] is the one such handler.
package server
