// Package services talks to the remote music API.
//
// # Tokens
//
// [TokenManager] runs the OAuth2 authorization code flow with client credentials sent as HTTP Basic auth.
// It builds the authorization URL, exchanges the callback code, and refreshes access tokens. Token endpoint
// failures are returned as [shared.AuthError].
//
// # Client
//
// [Client] is the only code that sends requests to the API. A request is authorized with the
// [Credentials] stored on its context by [WithCredentials]:
//   - every request waits on the client's rate limiter
//   - a 401 triggers one refresh through the [TokenRefresher], the new token is handed to
//     Credentials.OnRefresh for persistence, and the request is retried exactly once
//   - a non-2xx final response becomes a [shared.RemoteServiceError]
//
// Requests are counted and timed with Prometheus collectors registered on the default registry.
//
// # Spotify Implementation
//
// [SpotifyService] implements [Service] with typed endpoints. Playlist item writes are sent in batches of 100;
// [SpotifyService.ReplaceItems] replaces with the first batch and appends the rest.
package services
