package tasks

import (
	"fmt"

	"github.com/desertthunder/tuttitracks/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CheckSnapshot Phase = iota
	CreateRemote
	ReplaceItems
	UpdateDetails
	PushPlaylist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case CheckSnapshot:
		return "check_snapshot"
	case CreateRemote:
		return "create_remote"
	case ReplaceItems:
		return "replace_items"
	case UpdateDetails:
		return "update_details"
	case PushPlaylist:
		return "push_playlist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func checkSnapshotUpdate(p *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckSnapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking remote snapshot of %s...", p.Name),
	}
}

func createRemoteUpdate(p *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateRemote,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating %s on Spotify...", p.Name),
	}
}

func replaceItemsUpdate(p *models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplaceItems,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pushing %d tracks to %s...", count, p.Name),
	}
}

func updateDetailsUpdate(p *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdateDetails,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Updating details of %s...", p.Name),
	}
}

func pushCompletedUpdate(step, total int, res PushResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.PlaylistName, res.TracksPushed),
		Data:    res,
	}
}

func pushFailedUpdate(step, total int, res PushResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PlaylistName, res.Error),
		Data:    res,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
