package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	next    key.Binding
	prev    key.Binding
	sort    key.Binding
	search  key.Binding
	refresh key.Binding
	delete  key.Binding
	logout  key.Binding
	tab     key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		next:    key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next page")),
		prev:    key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "prev page")),
		sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		logout:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "logout")),
		tab:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.next, k.prev},
		{k.sort, k.search, k.refresh, k.delete},
		{k.logout, k.quit},
	}
}
