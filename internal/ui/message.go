package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgEntriesFetched
	MsgProgressUpdate
	MsgPushComplete
)

type playlistsData struct {
	playlists []*models.Playlist
	err       error
}

type entriesData struct {
	entries []models.PlaylistEntry
	cursor  int
	err     error
}

type pushData struct {
	result *tasks.PushResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []*models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsData{playlists, err}}
}

// entriesFetchedMsg is the constructor for [MsgEntriesFetched]. cursor is the entry to select.
func entriesFetchedMsg(entries []models.PlaylistEntry, cursor int, err error) Msg {
	return Msg{kind: MsgEntriesFetched, data: entriesData{entries, cursor, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// pushCompleteMsg is the constructor for [MsgPushComplete]
func pushCompleteMsg(result *tasks.PushResult, err error) Msg {
	return Msg{kind: MsgPushComplete, data: pushData{result, err}}
}
