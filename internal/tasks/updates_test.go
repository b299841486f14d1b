package tasks

import (
	"errors"
	"testing"

	"github.com/desertthunder/tuttitracks/internal/models"
)

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{CheckSnapshot, "check_snapshot"},
		{CreateRemote, "create_remote"},
		{ReplaceItems, "replace_items"},
		{UpdateDetails, "update_details"},
		{PushPlaylist, "push_playlist"},
		{ExportPlaylist, "export_playlist"},
		{Phase(99), ""},
	}

	for _, tc := range tests {
		if got := tc.phase.String(); got != tc.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tc.phase, got, tc.want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{Message: "ignored"})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, ProgressUpdate{Message: "first"})
		sendProgress(ch, ProgressUpdate{Message: "dropped"})

		if got := (<-ch).Message; got != "first" {
			t.Errorf("expected first update, got %q", got)
		}
		select {
		case u := <-ch:
			t.Errorf("unexpected update %q", u.Message)
		default:
		}
	})
}

func TestUpdateBuilders(t *testing.T) {
	p := &models.Playlist{Name: "Mix"}

	if u := replaceItemsUpdate(p, 12); u.Message != "Pushing 12 tracks to Mix..." || u.Phase != ReplaceItems {
		t.Errorf("unexpected replace update: %+v", u)
	}

	failed := pushFailedUpdate(2, 3, PushResult{PlaylistName: "Mix", Error: errors.New("boom")})
	if failed.Step != 2 || failed.Total != 3 || failed.Phase != PushPlaylist {
		t.Errorf("unexpected failure update: %+v", failed)
	}
	if _, ok := failed.Data.(PushResult); !ok {
		t.Errorf("failure update should carry the push result, got %T", failed.Data)
	}
}
