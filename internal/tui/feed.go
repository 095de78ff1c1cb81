package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fentz26/mcpctl/internal/models"
)

// HealthFeed carries connectivity changes from the health monitor's
// goroutine into the bubbletea event loop. Only the latest state is kept.
type HealthFeed struct {
	ch chan models.ConnectivityState
}

// NewHealthFeed creates an empty feed.
func NewHealthFeed() *HealthFeed {
	return &HealthFeed{ch: make(chan models.ConnectivityState, 1)}
}

// Publish replaces any undelivered state with st. It never blocks.
func (f *HealthFeed) Publish(st models.ConnectivityState) {
	for {
		select {
		case f.ch <- st:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Wait returns a command that delivers the next state.
func (f *HealthFeed) Wait() tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return connectivityMsg{state: <-f.ch}
	}
}
