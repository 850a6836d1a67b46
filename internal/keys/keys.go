// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the watch view.
type KeyMap struct {
	// Ownership
	Drop key.Binding
	Add  key.Binding
	Save key.Binding

	// Collection
	GC      key.Binding
	CleanUp key.Binding
	Notify  key.Binding

	// General
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Drop: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "drop newest owner"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add observer"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save observer count"),
		),
		GC: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "run gc"),
		),
		CleanUp: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clean up"),
		),
		Notify: key.NewBinding(
			key.WithKeys("n", " "),
			key.WithHelp("n", "notify"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Drop, k.Add, k.GC, k.CleanUp, k.Notify, k.Save, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Drop, k.Add, k.Save},
		{k.GC, k.CleanUp, k.Notify},
		{k.Quit},
	}
}
