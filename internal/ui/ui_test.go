package ui

import (
	"context"
	"slices"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

type fakeStore struct {
	playlists []*models.Playlist
	order     []string
	moves     [][2]int
	deleted   []int
}

func (s *fakeStore) List(context.Context, string) ([]*models.Playlist, error) {
	return s.playlists, nil
}

func (s *fakeStore) Entries(_ context.Context, id int64) ([]models.PlaylistEntry, error) {
	entries := make([]models.PlaylistEntry, len(s.order))
	for i, name := range s.order {
		entries[i] = models.PlaylistEntry{PlaylistID: id, Index: i, Name: name, SpotifyTrackID: name}
	}
	return entries, nil
}

func (s *fakeStore) Move(_ context.Context, _ int64, current, target int) error {
	if current < 0 || current >= len(s.order) || target < 0 || target >= len(s.order) {
		return shared.NewNotFoundError("index", target)
	}
	s.moves = append(s.moves, [2]int{current, target})
	name := s.order[current]
	s.order = slices.Delete(s.order, current, current+1)
	s.order = slices.Insert(s.order, target, name)
	return nil
}

func (s *fakeStore) DeleteAt(_ context.Context, _ int64, index int) error {
	s.deleted = append(s.deleted, index)
	s.order = slices.Delete(s.order, index, index+1)
	return nil
}

type fakePusher struct {
	mu     sync.Mutex
	forced []bool
	errs   []error
}

func (p *fakePusher) Push(_ context.Context, id int64, opts tasks.PushOptions) (*tasks.PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.forced = append(p.forced, opts.Force)
	if opts.Progress != nil {
		opts.Progress <- tasks.ProgressUpdate{Phase: tasks.ReplaceItems, Message: "Pushing 3 tracks..."}
	}
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &tasks.PushResult{PlaylistID: id, PlaylistName: "Road Trip", SpotifyPlaylistID: "pl-1", SnapshotID: "snap-2", TracksPushed: 3}, nil
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// run feeds cmd's messages back into m until a command yields no [Msg].
func run(m *Model, cmd tea.Cmd) {
	for cmd != nil {
		msg, ok := cmd().(Msg)
		if !ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func press(m *Model, s string) {
	_, cmd := m.Update(keyPress(s))
	run(m, cmd)
}

func newTestModel(t *testing.T) (*Model, *fakeStore, *fakePusher) {
	t.Helper()

	store := &fakeStore{
		playlists: []*models.Playlist{{ID: 1, Username: "alice", Name: "Road Trip", TrackCount: 3}},
		order:     []string{"A", "B", "C"},
	}
	pusher := &fakePusher{}
	m := NewModel(context.Background(), "alice", store, pusher)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	run(m, m.Init())
	return m, store, pusher
}

func entryNames(m *Model) []string {
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.Name)
	}
	return names
}

func TestModel(t *testing.T) {
	t.Run("loads playlists", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		assert.Equal(t, PlaylistListView, m.view)
		assert.Len(t, m.playlistList.Items(), 1)
		assert.Contains(t, m.View(), "Road Trip")
	})

	t.Run("opens a playlist", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		press(m, "enter")

		assert.Equal(t, TrackListView, m.view)
		assert.Equal(t, []string{"A", "B", "C"}, entryNames(m))
		assert.Equal(t, 0, m.trackList.Index())
	})

	t.Run("moves the selected track", func(t *testing.T) {
		m, store, _ := newTestModel(t)
		press(m, "enter")

		press(m, "J")
		assert.Equal(t, []string{"B", "A", "C"}, entryNames(m))
		assert.Equal(t, 1, m.trackList.Index())

		press(m, "J")
		assert.Equal(t, []string{"B", "C", "A"}, entryNames(m))
		assert.Equal(t, 2, m.trackList.Index())

		press(m, "J")
		assert.Len(t, store.moves, 2, "moving past the end is a no-op")

		press(m, "K")
		assert.Equal(t, []string{"B", "A", "C"}, entryNames(m))
		assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 1}}, store.moves)
	})

	t.Run("moving up at the top is a no-op", func(t *testing.T) {
		m, store, _ := newTestModel(t)
		press(m, "enter")
		press(m, "K")

		assert.Empty(t, store.moves)
	})

	t.Run("deletes the selected track", func(t *testing.T) {
		m, store, _ := newTestModel(t)
		press(m, "enter")
		press(m, "J")
		press(m, "d")

		assert.Equal(t, []int{1}, store.deleted)
		assert.Equal(t, []string{"B", "C"}, entryNames(m))
		assert.Equal(t, 1, m.trackList.Index())
	})

	t.Run("push after confirmation", func(t *testing.T) {
		m, _, pusher := newTestModel(t)
		press(m, "enter")
		press(m, "p")
		assert.Equal(t, ConfirmView, m.view)
		assert.Contains(t, m.View(), "Push 'Road Trip'")

		press(m, "y")
		require.Equal(t, ResultView, m.view)
		require.NoError(t, m.err)
		assert.Equal(t, "snap-2", m.result.SnapshotID)
		assert.Equal(t, "Pushing 3 tracks...", m.progress.Message)
		assert.Equal(t, []bool{false}, pusher.forced)
		assert.Contains(t, m.View(), "pl-1")

		press(m, "esc")
		assert.Equal(t, TrackListView, m.view)
	})

	t.Run("declining the push", func(t *testing.T) {
		m, _, pusher := newTestModel(t)
		press(m, "enter")
		press(m, "p")
		press(m, "n")

		assert.Equal(t, TrackListView, m.view)
		assert.Empty(t, pusher.forced)
	})

	t.Run("force push after a conflict", func(t *testing.T) {
		m, _, pusher := newTestModel(t)
		pusher.errs = []error{&shared.ConflictError{Resource: "playlist", Expected: "a", Actual: "b"}}
		press(m, "enter")
		press(m, "p")
		press(m, "y")

		require.Equal(t, ResultView, m.view)
		assert.True(t, tasks.IsConflict(m.err))
		assert.Contains(t, m.View(), "edited on Spotify")

		press(m, "f")
		require.NoError(t, m.err)
		assert.Equal(t, []bool{false, true}, pusher.forced)
	})

	t.Run("force is ignored for other failures", func(t *testing.T) {
		m, _, pusher := newTestModel(t)
		pusher.errs = []error{shared.ErrNotLinked}
		press(m, "enter")
		press(m, "p")
		press(m, "y")
		press(m, "f")

		assert.ErrorIs(t, m.err, shared.ErrNotLinked)
		assert.Len(t, pusher.forced, 1)
	})

	t.Run("back to playlists", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		press(m, "enter")
		press(m, "esc")

		assert.Equal(t, PlaylistListView, m.view)
	})
}
