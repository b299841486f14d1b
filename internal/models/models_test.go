package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

func TestPlaylist(t *testing.T) {
	t.Run("Validate rejects collaborative public playlists", func(t *testing.T) {
		p := &Playlist{Username: "ana", Name: "Mix", Public: true, Collaborative: true}
		err := p.Validate()

		var vErr *shared.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.Fields[0].Field != "collaborative" {
			t.Errorf("expected collaborative field error, got %s", vErr.Fields[0].Field)
		}
	})

	t.Run("Validate requires a name", func(t *testing.T) {
		p := &Playlist{Username: "ana"}
		if err := p.Validate(); err == nil {
			t.Error("expected missing name to fail validation")
		}
	})

	t.Run("Validate accepts private collaborative playlists", func(t *testing.T) {
		p := &Playlist{Username: "ana", Name: "Mix", Collaborative: true}
		if err := p.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Synced", func(t *testing.T) {
		p := &Playlist{}
		if p.Synced() || p.RemoteID() != "" || p.Snapshot() != "" {
			t.Error("new playlist should not be synced")
		}

		id, snap := "37i9dQZF1DX", "MTY4"
		p.SpotifyPlaylistID = &id
		p.SnapshotID = &snap
		if !p.Synced() || p.RemoteID() != id || p.Snapshot() != snap {
			t.Error("expected remote id and snapshot to be reported")
		}
	})

	t.Run("PlaylistInput.Apply", func(t *testing.T) {
		p := &Playlist{Name: "Old", Description: "desc", Public: true}
		private, desc := false, "new"
		PlaylistInput{Description: &desc, Public: &private}.Apply(p)

		if p.Name != "Old" {
			t.Errorf("empty name should keep current, got %s", p.Name)
		}
		if p.Description != "new" || p.Public {
			t.Errorf("unexpected playlist after apply: %+v", p)
		}

		PlaylistInput{Name: "Renamed"}.Apply(p)
		if p.Name != "Renamed" || p.Description != "new" {
			t.Errorf("nil description should keep current, got %+v", p)
		}

		empty := ""
		PlaylistInput{Description: &empty}.Apply(p)
		if p.Description != "" {
			t.Errorf("explicit empty description should clear it, got %q", p.Description)
		}
	})
}

func TestUser(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		u := &User{Username: "ab", Password: "hash", Email: "ab@example.com"}
		if err := u.Validate(); err == nil {
			t.Error("expected short username to fail validation")
		}

		u.Username = "abc"
		if err := u.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Linked", func(t *testing.T) {
		u := &User{}
		if u.Linked() {
			t.Error("user without tokens should not be linked")
		}
		token := "access"
		u.AccessToken = &token
		if !u.Linked() {
			t.Error("user with an access token should be linked")
		}
	})
}

func TestSyncJob(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)

	job := &SyncJob{Mode: SyncModeCreate, Status: SyncStatusPending}
	if err := job.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Duration() != 0 {
		t.Error("pending job should have zero duration")
	}

	job.StartedAt, job.CompletedAt = &start, &end
	if job.Duration() != 3*time.Second {
		t.Errorf("expected 3s, got %v", job.Duration())
	}

	job.Mode = "merge"
	if err := job.Validate(); err == nil {
		t.Error("expected unknown mode to fail validation")
	}
}

func TestTrack(t *testing.T) {
	tr := &Track{Artists: []Artist{{Name: "Low"}, {Name: "Mimi Parker"}}}
	if got := tr.ArtistNames(); got != "Low, Mimi Parker" {
		t.Errorf("ArtistNames() = %q", got)
	}
	if err := tr.Validate(); err == nil {
		t.Error("expected missing spotify id to fail validation")
	}
	if tr.Enriched() {
		t.Error("track without features should not be enriched")
	}
}
