package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/hatchly/internal/app"
)

var styles = NewPalette("#E8743B", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	label  lipgloss.Style
	active lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		label:  NewStyle(h),
		active: NewBold(t),
	}
}

// notice picks the style for a notice level.
func (p *Palette) notice(level app.Level) lipgloss.Style {
	switch level {
	case app.LevelSuccess:
		return p.ok
	case app.LevelWarning:
		return p.warn
	case app.LevelError:
		return p.err
	default:
		return p.label
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
