package ui

import "github.com/charmbracelet/lipgloss"

// Spotify brand green and the status colors used by the push views.
const (
	spotifyGreen  = lipgloss.Color("#1DB954")
	pushedGreen   = lipgloss.Color("#04B575")
	failedRed     = lipgloss.Color("#FF5F56")
	conflictAmber = lipgloss.Color("#FFA500")
	mutedGray     = lipgloss.Color("#626262")
)

var styles = newPalette()

// palette holds the styles for each push outcome.
type palette struct {
	title lipgloss.Style // view headings
	ok    lipgloss.Style // push completed
	err   lipgloss.Style // push or load failed
	warn  lipgloss.Style // remote snapshot conflict
	help  lipgloss.Style // key hints
}

func newPalette() palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return palette{
		title: fg(spotifyGreen).Bold(true).MarginBottom(1),
		ok:    fg(pushedGreen).Bold(true),
		err:   fg(failedRed).Bold(true),
		warn:  fg(conflictAmber),
		help:  fg(mutedGray).Italic(true),
	}
}
