package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// LinkFunc completes the authorization code flow with code, returning the linked user.
type LinkFunc func(ctx context.Context, code string) (*models.User, error)

// CallbackResult contains the result of an authorization flow.
type CallbackResult struct {
	User *models.User
	err  error
}

func (o *CallbackResult) Error() error {
	return o.err
}

// CallbackHandler serves the redirect URI for the command line authorization flow.
// Implements the Handler interface for registration with [Mount].
type CallbackHandler struct {
	path        string
	state       string
	link        LinkFunc
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a handler for the path of redirectURI.
// The state token should be cryptographically random for CSRF protection.
func NewCallbackHandler(redirectURI, state string, link LinkFunc) (*CallbackHandler, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return &CallbackHandler{
		path:       path,
		state:      state,
		link:       link,
		resultChan: make(chan CallbackResult, 1),
	}, nil
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the state parameter, links the account with the code and sends the
// result through the result channel.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CallbackResult{err: &shared.AuthError{Code: "invalid_state", Description: "state mismatch"}})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(CallbackResult{err: &shared.AuthError{Code: q.Get("error"), Description: q.Get("error_description")}})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	user, err := h.link(r.Context(), code)
	if err != nil {
		h.Send(CallbackResult{err: err})
		http.Error(w, "Linking failed", shared.StatusCode(err))
		return
	}

	h.Send(CallbackResult{User: user})

	name := user.Username
	if user.SpotifyDisplayName != nil {
		name = *user.SpotifyDisplayName
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Spotify Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Linked as %s</h1>
        <p>You can close this window and return to tuttitracks.</p>
    </div>
</body>
</html>
`, html.EscapeString(name))
}

// Send sends the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}
