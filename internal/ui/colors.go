package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/catx/internal/notify"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#3C9EE7", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	info  lipgloss.Style
	help  lipgloss.Style
	toast lipgloss.Style
}

func NewPalette(t, s, e, w, i, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		info:  NewStyle(i),
		help:  NewEm(h),
		toast: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// Toast renders a toast boxed in its level's color.
func (p *Palette) Toast(t *notify.Toast) string {
	var s lipgloss.Style
	switch t.Level {
	case notify.LevelError:
		s = p.err
	case notify.LevelSuccess:
		s = p.ok
	case notify.LevelWarning:
		s = p.warn
	default:
		s = p.info
	}
	return p.toast.BorderForeground(s.GetForeground()).Render(s.Render(t.Message))
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
