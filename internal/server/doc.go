// Package server provides the JSON API, its middleware and the command line OAuth callback handler.
//
// # Routing
//
// Routes are registered on a chi router (see routes.go). Every response goes through request ID,
// real IP, request logging, panic recovery and CORS middleware. JSON routes also disable caching.
//
// Routes under /api are rate limited per client IP and require a session. Routes that reach the
// remote service load the session user's stored tokens into the request context first; refreshed
// tokens are written back by [tasks.Accounts].
//
// # Sessions
//
// [Sessions] signs the username into an HS256 JWT stored in an HttpOnly cookie. The /connect route
// stores a random state in a second short-lived cookie, which /authorize checks before exchanging
// the authorization code.
//
// # Responses
//
// Bodies are JSON objects with a "success" flag. Errors carry a "message" and, for validation
// failures, the failed "errors". Status codes come from [shared.StatusCode].
//
// # OAuth Callback Handler
//
// [CallbackHandler] serves the redirect URI when the account is linked from the command line.
// It validates the state parameter, links the account with the code, and sends the result through
// a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
