package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

const historyLimit = 20

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Current  string `json:"current_password"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type trackRef struct {
	ID int64 `json:"id"`
}

type createPlaylistRequest struct {
	models.PlaylistInput
	Tracks []trackRef `json:"playlistTracks"`
}

type addTracksRequest struct {
	IDs   []int64 `json:"id"`
	Index *int    `json:"index"`
}

type removeTracksRequest struct {
	IDs   []int64 `json:"id"`
	Index *int    `json:"index"`
}

type moveTrackRequest struct {
	Current *int `json:"current_index"`
	Target  *int `json:"new_index"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	user, err := s.accounts.Signup(r.Context(), req)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.sessions.Issue(w, r, user.Username); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	user, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.sessions.Issue(w, r, user.Username); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, envelope{"message": "logged out"})
}

// handleConnect redirects to the remote authorization page with a fresh state cookie.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, s.logger, fmt.Errorf("%w: spotify credentials are not configured", shared.ErrServiceUnavailable))
		return
	}

	state := shared.GenerateID()
	setState(w, r, state)
	http.Redirect(w, r, s.auth.BeginAuthorization(state), http.StatusFound)
}

// handleAuthorize completes the authorization code flow for the session user.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		clearCookie(w, StateCookie)
		writeError(w, s.logger, &shared.AuthError{Code: e, Description: q.Get("error_description")})
		return
	}
	if !checkState(w, r, q.Get("state")) {
		writeError(w, s.logger, &shared.AuthError{Code: "invalid_state", Description: "state mismatch"})
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, s.logger, shared.NewValidationError("code", "authorization code is required"))
		return
	}

	user, err := s.accounts.LinkSpotify(r.Context(), usernameFrom(r.Context()), code)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.User(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": user, "linked": user.Linked()})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err := s.accounts.ChangePassword(r.Context(), usernameFrom(r.Context()), req.Current, req.Password, req.Confirm)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "password updated"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	q := r.URL.Query()
	query := services.SearchQuery{
		Artist: q.Get("artist"),
		Track:  q.Get("track"),
		Album:  q.Get("album"),
		Genre:  q.Get("genre"),
		Year:   q.Get("year"),
	}
	tracks, err := s.browser.Search(r.Context(), query, 0, offset)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tracks": tracks, "offset": offset})
}

func (s *Server) handleLiked(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	tracks, err := s.browser.Liked(r.Context(), 0, offset)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tracks": tracks, "offset": offset})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	timeRange := r.URL.Query().Get("time_range")
	tracks, err := s.browser.Top(r.Context(), timeRange, 0, offset)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tracks": tracks, "offset": offset})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	track, err := s.browser.Track(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"track": track})
}

func (s *Server) handleRemotePlaylists(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	playlists, err := s.browser.RemotePlaylists(r.Context(), limit, offset)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"playlists": playlists})
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.engine.List(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"playlists": playlists})
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	ids := make([]int64, 0, len(req.Tracks))
	for _, t := range req.Tracks {
		ids = append(ids, t.ID)
	}

	p, err := s.engine.Create(r.Context(), usernameFrom(r.Context()), req.PlaylistInput, ids)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"playlist": p})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"playlist": playlistFrom(r.Context())})
}

// handleUpdatePlaylist saves the details locally, then mirrors them to the remote playlist when the
// playlist has been pushed and the user is linked. A failed mirror is reported without failing the request.
func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in models.PlaylistInput
	if err := decode(r, &in); err != nil {
		writeError(w, s.logger, err)
		return
	}

	p, err := s.engine.Update(r.Context(), playlistFrom(r.Context()).ID, in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	body := envelope{"playlist": p, "remote_updated": false}
	if p.Synced() {
		ctx, err := s.accounts.WithCredentials(r.Context(), p.Username)
		if err == nil {
			var updated bool
			updated, err = s.syncer.UpdateRemoteDetails(ctx, p.ID, nil)
			body["remote_updated"] = updated
		}
		if err != nil && !errors.Is(err, shared.ErrNotLinked) {
			s.logger.Warn("failed to mirror playlist details", "playlist", p.ID, "err", err)
			body["remote_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeletePlaylist(r.Context(), playlistFrom(r.Context()).ID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "playlist deleted"})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Entries(r.Context(), playlistFrom(r.Context()).ID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tracks": entries})
}

// handleAddTracks appends the tracks, or inserts them in order starting at index.
func (s *Server) handleAddTracks(w http.ResponseWriter, r *http.Request) {
	var req addTracksRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, s.logger, shared.NewValidationError("id", "at least one track id is required"))
		return
	}

	id := playlistFrom(r.Context()).ID
	var err error
	if req.Index == nil {
		err = s.engine.Append(r.Context(), id, req.IDs)
	} else {
		err = s.engine.InsertManyAt(r.Context(), id, req.IDs, *req.Index)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.writeEntries(w, r, http.StatusCreated)
}

// handleRemoveTracks deletes the entry at index, or the first occurrence of each track id.
func (s *Server) handleRemoveTracks(w http.ResponseWriter, r *http.Request) {
	var req removeTracksRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	id := playlistFrom(r.Context()).ID
	var err error
	switch {
	case req.Index != nil:
		err = s.engine.DeleteAt(r.Context(), id, *req.Index)
	case len(req.IDs) > 0:
		err = s.engine.DeleteMany(r.Context(), id, req.IDs)
	default:
		err = shared.NewValidationError("id", "a track id or index is required")
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.writeEntries(w, r, http.StatusOK)
}

func (s *Server) handleMoveTrack(w http.ResponseWriter, r *http.Request) {
	var req moveTrackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Current == nil || req.Target == nil {
		writeError(w, s.logger, shared.NewValidationError("current_index", "current_index and new_index are required"))
		return
	}

	if err := s.engine.Move(r.Context(), playlistFrom(r.Context()).ID, *req.Current, *req.Target); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.writeEntries(w, r, http.StatusOK)
}

func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, status int) {
	entries, err := s.engine.Entries(r.Context(), playlistFrom(r.Context()).ID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, status, envelope{"tracks": entries})
}

// handlePushTracks replaces the items of an already pushed playlist with the local order.
func (s *Server) handlePushTracks(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.PushUpdate(r.Context(), playlistFrom(r.Context()).ID, tasks.PushOptions{Force: forced(r)})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"result": res})
}

// handlePush creates the remote playlist on the first push and replaces its items afterwards.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.Push(r.Context(), playlistFrom(r.Context()).ID, tasks.PushOptions{Force: forced(r)})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	status := http.StatusOK
	if res.Mode == models.SyncModeCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, envelope{"result": res})
}

func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.syncer.History(r.Context(), playlistFrom(r.Context()).ID, historyLimit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"syncs": jobs})
}

func forced(r *http.Request) bool {
	v := r.URL.Query().Get("force")
	return v == "true" || v == "1"
}
