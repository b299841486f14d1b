package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

func TestCallbackHandler(t *testing.T) {
	link := func(_ context.Context, code string) (*models.User, error) {
		if code != "good" {
			return nil, &shared.AuthError{Code: "invalid_grant"}
		}
		name := "Remote <User>"
		return &models.User{Username: "alice", SpotifyDisplayName: &name}, nil
	}

	t.Run("routes follow the redirect path", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/auth/callback", "state", link)
		require.NoError(t, err)
		assert.Equal(t, []string{"/auth/callback"}, h.Routes())
	})

	t.Run("rejects invalid redirect uri", func(t *testing.T) {
		_, err := NewCallbackHandler("not a url", "state", link)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("links the account", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/callback", "state", link)
		require.NoError(t, err)
		r := chi.NewRouter()
		Mount(r, h)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Remote &lt;User&gt;")

		result := <-h.Result()
		require.NoError(t, result.Error())
		assert.Equal(t, "alice", result.User.Username)
	})

	t.Run("state mismatch", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/callback", "state", link)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=good", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		result := <-h.Result()
		var authErr *shared.AuthError
		require.True(t, errors.As(result.Error(), &authErr))
		assert.Equal(t, "invalid_state", authErr.Code)
	})

	t.Run("denied grant", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/callback", "state", link)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&error=access_denied", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		result := <-h.Result()
		assert.ErrorContains(t, result.Error(), "access_denied")
	})

	t.Run("link failure", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/callback", "state", link)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=bad", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		result := <-h.Result()
		assert.Error(t, result.Error())
	})

	t.Run("only handles one callback", func(t *testing.T) {
		h, err := NewCallbackHandler("http://localhost:3000/callback", "state", link)
		require.NoError(t, err)

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good", nil))
		second := httptest.NewRecorder()
		h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/callback?state=state&code=good", nil))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusBadRequest, second.Code)
	})
}
