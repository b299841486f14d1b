package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.conf.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(noCache)

		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/connect", s.handleConnect)
			r.Get("/authorize", s.handleAuthorize)
			r.With(s.selfOnly).Get("/users/{username}", s.handleProfile)
			r.With(s.selfOnly).Post("/users/{username}/password", s.handleChangePassword)
			r.Get("/playlists", s.handleListPlaylists)

			r.Group(func(r chi.Router) {
				r.Use(s.withRemote)
				r.Get("/search", s.handleSearch)
				r.Get("/tracks", s.handleLiked)
				r.Get("/top", s.handleTop)
			})
		})

		r.Route("/api", func(r chi.Router) {
			if s.conf.RateLimit > 0 {
				r.Use(httprate.LimitByIP(s.conf.RateLimit, s.conf.RateWindow()))
			}
			r.Use(s.requireSession)

			r.Get("/tracks/{id}", s.handleTrack)
			r.Get("/me/playlists", s.handleListPlaylists)
			r.With(s.selfOnly).Post("/users/{username}/playlists", s.handleCreatePlaylist)

			r.Route("/playlists/{id}", func(r chi.Router) {
				r.Use(s.ownedPlaylist)

				r.Get("/", s.handleGetPlaylist)
				r.Delete("/", s.handleDeletePlaylist)
				r.Get("/tracks", s.handleEntries)
				r.Post("/tracks", s.handleAddTracks)
				r.Patch("/tracks", s.handleRemoveTracks)
				r.Patch("/track", s.handleMoveTrack)
				r.Get("/syncs", s.handleSyncHistory)

				r.Put("/", s.handleUpdatePlaylist)
				r.With(s.withRemote).Put("/tracks", s.handlePushTracks)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.withRemote)
				r.Get("/me/tracks", s.handleLiked)
				r.Get("/me/top/tracks", s.handleTop)
				r.Get("/spotify/playlists", s.handleRemotePlaylists)
				r.With(s.ownedPlaylist).Post("/spotify/{id}/playlists", s.handlePush)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}
