package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	PushView
	ResultView
)

// Store is the playlist storage the editor works on. [tasks.PlaylistEngine] implements it.
type Store interface {
	List(ctx context.Context, username string) ([]*models.Playlist, error)
	Entries(ctx context.Context, playlistID int64) ([]models.PlaylistEntry, error)
	Move(ctx context.Context, playlistID int64, current, target int) error
	DeleteAt(ctx context.Context, playlistID int64, index int) error
}

// Pusher mirrors a playlist to the remote service. [tasks.Syncer] implements it.
type Pusher interface {
	Push(ctx context.Context, playlistID int64, opts tasks.PushOptions) (*tasks.PushResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	username     string
	store        Store
	pusher       Pusher
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	playlist     *models.Playlist
	entries      []models.PlaylistEntry
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.PushResult
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for username. ctx must carry the user's remote credentials for pushes.
func NewModel(ctx context.Context, username string, store Store, pusher Pusher) *Model {
	playlistList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlistList.Title = fmt.Sprintf("Playlists of %s", username)

	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.SetFilteringEnabled(false)

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		username:     username,
		store:        store,
		pusher:       pusher,
		playlistList: playlistList,
		trackList:    trackList,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by loading the user's playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsData)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		return m, m.playlistList.SetItems(playlistItems(data.playlists))

	case MsgEntriesFetched:
		data := msg.data.(entriesData)
		if data.err != nil {
			m.status = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.entries = data.entries
		m.view = TrackListView
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", m.playlist.Name)
		cmd := m.trackList.SetItems(entryItems(data.entries))
		if len(data.entries) > 0 {
			m.trackList.Select(min(max(data.cursor, 0), len(data.entries)-1))
		}
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgPushComplete:
		data := msg.data.(pushData)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.doneChan = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case PushView:
		return m.renderPush()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.playlist = pl.playlist
			m.status = ""
			return m, m.fetchEntries(0)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cursor := m.trackList.Index()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.status = ""
		return m, m.fetchPlaylists()
	case key.Matches(msg, m.keys.moveUp):
		if len(m.entries) > 0 && cursor > 0 {
			return m, m.move(cursor, cursor-1)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if len(m.entries) > 0 && cursor < len(m.entries)-1 {
			return m, m.move(cursor, cursor+1)
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if len(m.entries) > 0 {
			return m, m.deleteAt(cursor)
		}
		return m, nil
	case key.Matches(msg, m.keys.push):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m, m.startPush(false)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.force):
		if tasks.IsConflict(m.err) {
			return m, m.startPush(true)
		}
	case key.Matches(msg, m.keys.back):
		m.view = TrackListView
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.store.List(m.ctx, m.username)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchEntries(cursor int) tea.Cmd {
	id := m.playlist.ID
	return func() tea.Msg {
		entries, err := m.store.Entries(m.ctx, id)
		return entriesFetchedMsg(entries, cursor, err)
	}
}

func (m *Model) move(current, target int) tea.Cmd {
	id := m.playlist.ID
	return func() tea.Msg {
		if err := m.store.Move(m.ctx, id, current, target); err != nil {
			return entriesFetchedMsg(nil, current, err)
		}
		entries, err := m.store.Entries(m.ctx, id)
		return entriesFetchedMsg(entries, target, err)
	}
}

func (m *Model) deleteAt(index int) tea.Cmd {
	id := m.playlist.ID
	return func() tea.Msg {
		if err := m.store.DeleteAt(m.ctx, id, index); err != nil {
			return entriesFetchedMsg(nil, index, err)
		}
		entries, err := m.store.Entries(m.ctx, id)
		return entriesFetchedMsg(entries, index, err)
	}
}

// startPush runs the push in the background. Progress arrives on progressChan, and the
// result on doneChan once progressChan is closed.
func (m *Model) startPush(force bool) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.doneChan = done
	m.progress = tasks.ProgressUpdate{}
	m.result = nil
	m.err = nil
	m.view = PushView

	id := m.playlist.ID
	go func() {
		result, err := m.pusher.Push(m.ctx, id, tasks.PushOptions{Force: force, Progress: progress})
		close(progress)
		done <- pushCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return pushCompleteMsg(m.result, m.err)
		}
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderPlaylistList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.moveUp, m.keys.moveDown, m.keys.remove, m.keys.push, m.keys.back, m.keys.quit,
	})
	out := m.trackList.View()
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, helpView)
}

func (m *Model) renderConfirm() string {
	target := "a new Spotify playlist"
	if m.playlist.Synced() {
		target = fmt.Sprintf("Spotify playlist %s", m.playlist.RemoteID())
	}
	title := styles.title.Render(fmt.Sprintf("Push '%s' to %s?", m.playlist.Name, target))
	info := fmt.Sprintf("\nTracks: %d\n", len(m.entries))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPush() string {
	title := styles.title.Render("Pushing Playlist")

	phase := m.progress.Message
	if phase == "" {
		phase = "Starting..."
	}
	return fmt.Sprintf("%s\n\n%s", title, phase)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		keys := []key.Binding{m.keys.back, m.keys.quit}
		msg := fmt.Sprintf("Push failed: %v", m.err)
		if tasks.IsConflict(m.err) {
			keys = append([]key.Binding{m.keys.force}, keys...)
			msg += "\n\n" + styles.warn.Render("The playlist was edited on Spotify since the last push.")
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), m.help.ShortHelpView(keys))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Push Complete!")
	info := fmt.Sprintf(
		"\nPlaylist: %s\nSpotify ID: %s\nSnapshot: %s\nTracks pushed: %d",
		m.result.PlaylistName,
		m.result.SpotifyPlaylistID,
		m.result.SnapshotID,
		m.result.TracksPushed,
	)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, styles.help.Render(helpView))
}
