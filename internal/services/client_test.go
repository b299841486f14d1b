package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tuttitracks/internal/shared"
	tt "github.com/desertthunder/tuttitracks/internal/testing"
)

func TestClient(t *testing.T) {
	t.Run("Sends Bearer Token", func(t *testing.T) {
		svc, fake, ctx, _ := newTestService(t)

		user, err := svc.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.RemoteUserID, user.ID)
		assert.Equal(t, "avatar", user.Image())
		assert.Equal(t, 0, fake.Refreshes())
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		svc, fake, _, _ := newTestService(t)

		_, err := svc.Me(context.Background())
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.Empty(t, fake.Requests())
	})

	t.Run("Empty Access Token", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		ctx := WithCredentials(context.Background(), NewCredentials("alice", &oauth2.Token{}, nil))

		_, err := svc.Me(ctx)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("Refreshes Expired Token Once", func(t *testing.T) {
		svc, fake, _, _ := newTestService(t)

		var persisted *oauth2.Token
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh},
			func(_ context.Context, token *oauth2.Token) error {
				persisted = token
				return nil
			})
		ctx := WithCredentials(context.Background(), creds)

		fake.Expire()

		user, err := svc.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.RemoteUserID, user.ID)
		assert.Equal(t, 1, fake.Refreshes())
		assert.Len(t, fake.RequestsTo(http.MethodGet, "/me"), 2)

		require.NotNil(t, persisted)
		assert.Equal(t, "access-2", persisted.AccessToken)
		assert.Equal(t, tt.InitialRefresh, persisted.RefreshToken)
		assert.Equal(t, "access-2", creds.Token().AccessToken)

		_, err = svc.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, fake.Refreshes())
	})

	t.Run("Persist Failure Is Not Fatal", func(t *testing.T) {
		svc, fake, _, _ := newTestService(t)
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh},
			func(context.Context, *oauth2.Token) error { return errors.New("disk full") })

		fake.Expire()

		_, err := svc.Me(WithCredentials(context.Background(), creds))
		assert.NoError(t, err)
	})

	t.Run("Missing Refresh Token", func(t *testing.T) {
		svc, fake, _, _ := newTestService(t)
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess}, nil)

		fake.Expire()

		_, err := svc.Me(WithCredentials(context.Background(), creds))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNoRefreshToken)

		var remoteErr *shared.RemoteServiceError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
		assert.Equal(t, 0, fake.Refreshes())
	})

	t.Run("Refresh Rejected", func(t *testing.T) {
		svc, fake, ctx, creds := newTestService(t)

		fake.Expire()
		fake.FailRefresh()

		_, err := svc.Me(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrRefreshFailed)

		var authErr *shared.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "invalid_grant", authErr.Code)
		assert.Equal(t, tt.InitialAccess, creds.Token().AccessToken)
	})

	t.Run("Second 401 Is Returned", func(t *testing.T) {
		fake := tt.NewFakeSpotify(t)

		var calls atomic.Int32
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"status":401,"message":"Invalid access token"}}`))
		}))
		t.Cleanup(api.Close)

		svc := NewSpotifyService(NewClient(testTokenManager(fake, false), ClientOpts{BaseURL: api.URL}))
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh}, nil)

		_, err := svc.Me(WithCredentials(context.Background(), creds))

		var remoteErr *shared.RemoteServiceError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
		assert.Equal(t, "Invalid access token", remoteErr.Message)
		assert.EqualValues(t, 2, calls.Load())
		assert.Equal(t, 1, fake.Refreshes())
	})

	t.Run("Remote Error Message", func(t *testing.T) {
		svc, fake, ctx, _ := newTestService(t)
		fake.FailNext("GET /me", 1)

		_, err := svc.Me(ctx)

		var remoteErr *shared.RemoteServiceError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusInternalServerError, remoteErr.Status)
		assert.Equal(t, "Server error", remoteErr.Message)
		assert.Equal(t, http.StatusBadGateway, shared.StatusCode(err))
	})

	t.Run("Transport Failure", func(t *testing.T) {
		fake := tt.NewFakeSpotify(t)
		httpClient := &http.Client{Transport: tt.NewMockRoundTripper(nil, errors.New("connection reset"))}
		svc := NewSpotifyService(NewClient(testTokenManager(fake, false), ClientOpts{BaseURL: fake.APIURL(), HTTPClient: httpClient}))
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess}, nil)

		_, err := svc.Me(WithCredentials(context.Background(), creds))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("Unreadable Body", func(t *testing.T) {
		fake := tt.NewFakeSpotify(t)
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tt.FCloser{}, Header: http.Header{}}
		httpClient := &http.Client{Transport: tt.NewMockRoundTripper(resp, nil)}
		svc := NewSpotifyService(NewClient(testTokenManager(fake, false), ClientOpts{BaseURL: fake.APIURL(), HTTPClient: httpClient}))
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess}, nil)

		_, err := svc.Me(WithCredentials(context.Background(), creds))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("Timeout Leaves Caller Client Alone", func(t *testing.T) {
		base := &http.Client{}
		client := NewClient(nil, ClientOpts{HTTPClient: base, Timeout: 3 * time.Second})

		assert.Zero(t, base.Timeout)
		assert.Equal(t, 3*time.Second, client.http.Timeout)
		assert.NotSame(t, base, client.http)
	})

	t.Run("Canceled Context", func(t *testing.T) {
		svc, _, ctx, _ := newTestService(t)
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.Me(ctx)
		assert.Error(t, err)
	})
}

func TestCredentials(t *testing.T) {
	t.Run("Token Returns Copy", func(t *testing.T) {
		creds := NewCredentials("alice", &oauth2.Token{AccessToken: "a"}, nil)
		token := creds.Token()
		token.AccessToken = "changed"
		assert.Equal(t, "a", creds.Token().AccessToken)
	})

	t.Run("Nil Token", func(t *testing.T) {
		assert.Nil(t, NewCredentials("alice", nil, nil).Token())
	})

	t.Run("Context Round Trip", func(t *testing.T) {
		_, ok := CredentialsFrom(context.Background())
		assert.False(t, ok)

		creds := NewCredentials("alice", nil, nil)
		got, ok := CredentialsFrom(WithCredentials(context.Background(), creds))
		assert.True(t, ok)
		assert.Same(t, creds, got)
	})
}
