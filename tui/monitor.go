package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"midiplay/debug"
	"midiplay/player"
)

// Monitor carries dispatches from the player's track goroutines to the UI.
// Observe never blocks: when the UI falls behind, dispatches are dropped.
type Monitor struct {
	updates chan player.Dispatch
}

func NewMonitor(size int) *Monitor {
	return &Monitor{updates: make(chan player.Dispatch, size)}
}

// Observe is meant for player.WithObserver
func (m *Monitor) Observe(d player.Dispatch) {
	select {
	case m.updates <- d:
	default:
		debug.LogEvery(50, "tui", "monitor full, dropped dispatch for track %d", d.Track)
	}
}

// DispatchMsg wraps a dispatch for the bubbletea update loop
type DispatchMsg player.Dispatch

// DoneMsg reports that playback returned
type DoneMsg struct {
	Err error
}

func (m *Monitor) listen() tea.Cmd {
	return func() tea.Msg {
		return DispatchMsg(<-m.updates)
	}
}
