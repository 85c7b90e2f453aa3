package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	next    key.Binding
	quit    key.Binding
	signup  key.Binding
	add     key.Binding
	rename  key.Binding
	move    key.Binding
	remove  key.Binding
	filter  key.Binding
	upload  key.Binding
	local   key.Binding
	remote  key.Binding
	capture key.Binding
	retry   key.Binding
	again   key.Binding
	history key.Binding
	export  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		signup:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "sign in/sign up")),
		add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		rename:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		move:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "transfer")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter location")),
		upload:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload file")),
		local:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "local camera")),
		remote:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "networked camera")),
		capture: key.NewBinding(key.WithKeys(" ", "c"), key.WithHelp("space", "capture")),
		retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		again:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "try again")),
		history: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export all")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.back, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.add, k.rename, k.move, k.remove, k.filter},
		{k.upload, k.local, k.remote, k.capture},
		{k.retry, k.again, k.history, k.export, k.quit},
	}
}
