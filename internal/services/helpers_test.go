package services

import (
	"context"
	"testing"

	"golang.org/x/oauth2"

	"github.com/desertthunder/tuttitracks/internal/shared"
	tt "github.com/desertthunder/tuttitracks/internal/testing"
)

func testTokenManager(fake *tt.FakeSpotify, showDialog bool) *TokenManager {
	creds := shared.SpotifyConfig{
		ClientID:     tt.ClientID,
		ClientSecret: tt.ClientSecret,
		RedirectURI:  "http://localhost:3000/callback",
		Scopes:       []string{"user-library-read", "playlist-modify-private"},
		ShowDialog:   showDialog,
	}
	remote := shared.RemoteConfig{APIURL: fake.APIURL(), AuthURL: fake.AuthURL(), TokenURL: fake.TokenURL()}
	return NewTokenManager(creds, remote, nil)
}

// newTestService wires a [SpotifyService] to a fake server and returns a context carrying fresh credentials.
func newTestService(t *testing.T) (*SpotifyService, *tt.FakeSpotify, context.Context, *Credentials) {
	t.Helper()

	fake := tt.NewFakeSpotify(t)
	client := NewClient(testTokenManager(fake, false), ClientOpts{BaseURL: fake.APIURL()})
	creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh}, nil)
	return NewSpotifyService(client), fake, WithCredentials(context.Background(), creds), creds
}
