package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/discx/internal/models"
)

var styles = newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// palette is a simple stylesheet built with named [lipgloss.Style] fields
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette(t, s, e, w, h string) *palette {
	return &palette{
		title: newBold(t).MarginBottom(1),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
		help:  newEm(h),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}

// stateBadge renders a job state in its color.
func stateBadge(state models.JobState) string {
	label := "[" + state.String() + "]"
	switch state {
	case models.JobComplete:
		return styles.ok.Render(label)
	case models.JobFailed:
		return styles.err.Render(label)
	case models.JobNeedsConfirm:
		return styles.warn.Render(label)
	default:
		return styles.help.Render(label)
	}
}
