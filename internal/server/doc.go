// Package server provides the loopback HTTP listener that receives OAuth redirects.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] captures the first redirect that reaches its path and hands the full callback URL
// to whoever is waiting on [CallbackHandler.Result]. State and code validation happen in the auth package,
// which owns the PKCE verifier.
//
// [Loopback] binds a listener on the redirect URI's host and port, serves the router, and shuts down
// once the caller is done with it.
package server
