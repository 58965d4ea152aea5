package session

import (
	"charm.land/bubbles/v2/key"

	"github.com/dersual/Focus-Friendship-MVP/internal/ui/layout"
)

type keyMap struct {
	Pause   key.Binding
	Resume  key.Binding
	Task    key.Binding
	Stop    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var keys = keyMap{
	Pause:   key.NewBinding(key.WithKeys("p", "space"), key.WithHelp("P", "Pause")),
	Resume:  key.NewBinding(key.WithKeys("p", "space"), key.WithHelp("P", "Resume")),
	Task:    key.NewBinding(key.WithKeys("t"), key.WithHelp("T", "Task done")),
	Stop:    key.NewBinding(key.WithKeys("esc", "s"), key.WithHelp("Esc", "Stop")),
	Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("Y", "Stop session")),
	Cancel:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("N", "Keep going")),
}

func hints(bindings ...key.Binding) []layout.KeyHint {
	out := make([]layout.KeyHint, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		out = append(out, layout.KeyHint{Key: h.Key, Description: h.Desc})
	}
	return out
}
