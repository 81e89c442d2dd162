// package server contains the router, middleware & handlers for the local catalog companion service
package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, request ids and route guards.
type Middleware func(http.Handler) http.Handler

// Handler serves a group of related routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the mux patterns ("METHOD /path") this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                          // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, route ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                               // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)                      // ServeHTTP implements http.Handler for the entire router
}
