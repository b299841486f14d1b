package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/tuttitracks/internal/shared"
	"golang.org/x/oauth2"
)

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenManager drives the OAuth2 authorization code flow against the remote accounts service.
//
// Client credentials are sent with HTTP Basic auth on every token request.
type TokenManager struct {
	config     *oauth2.Config
	showDialog bool
	httpClient *http.Client
}

// NewTokenManager creates a [TokenManager] from the configured client credentials and endpoints.
//
// httpClient is used for token requests; nil selects [http.DefaultClient].
func NewTokenManager(creds shared.SpotifyConfig, remote shared.RemoteConfig, httpClient *http.Client) *TokenManager {
	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       creds.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   remote.AuthURL,
				TokenURL:  remote.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		showDialog: creds.ShowDialog,
		httpClient: httpClient,
	}
}

// BeginAuthorization returns the URL the user visits to grant access. state must round-trip through the callback.
func (m *TokenManager) BeginAuthorization(state string) string {
	var opts []oauth2.AuthCodeOption
	if m.showDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return m.config.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for a token pair.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := m.config.Exchange(m.context(ctx), code)
	if err != nil {
		return nil, authError(err)
	}
	return token, nil
}

// Refresh trades a refresh token for a new access token. The returned token always carries a refresh
// token: the original one is kept when the server does not rotate it.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := m.config.TokenSource(m.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, authError(err)
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

func (m *TokenManager) context(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// authError converts an oauth2 failure into a [shared.AuthError].
func authError(err error) error {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return &shared.AuthError{Code: "authorization_error", Description: "Authorization Error"}
	}

	code, desc := rErr.ErrorCode, rErr.ErrorDescription
	if code == "" && rErr.Response != nil {
		code = strconv.Itoa(rErr.Response.StatusCode)
	}
	if desc == "" {
		desc = string(rErr.Body)
	}
	return &shared.AuthError{Code: code, Description: desc}
}
