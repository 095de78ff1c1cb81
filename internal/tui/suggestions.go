package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for commands and server names.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	prefix      string // "/" or "@"
	servers     []string
}

// SuggestionItem represents a single autocomplete suggestion.
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "server"
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "add <name> <command> [args...]", Type: "command"},
	{Text: "edit", Description: "edit <name> <command> [args...]", Type: "command"},
	{Text: "env", Description: "env <name> KEY=VALUE ...", Type: "command"},
	{Text: "rm", Description: "Remove a server", Type: "command"},
	{Text: "tools", Description: "tools [server] [model]", Type: "command"},
	{Text: "model", Description: "Switch the active model", Type: "command"},
	{Text: "ask", Description: "ask <prompt> against the selected server", Type: "command"},
	{Text: "refresh", Description: "Reload the current view", Type: "command"},
	{Text: "import", Description: "import <path>", Type: "command"},
	{Text: "export", Description: "export <path>", Type: "command"},
	{Text: "quit", Description: "Exit", Type: "command"},
}

// NewSuggestions creates a new suggestions handler.
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// SetServers updates the server names offered after "@".
func (s *Suggestions) SetServers(names []string) {
	s.servers = append([]string(nil), names...)
}

// Update updates suggestions based on current input.
func (s *Suggestions) Update(input string) {
	if input == "" {
		s.hide()
		return
	}

	switch input[0] {
	case '/':
		if strings.Contains(input, " ") {
			s.hide()
			return
		}
		s.prefix = "/"
		s.items = commandSuggestions
	case '@':
		s.prefix = "@"
		s.items = make([]SuggestionItem, len(s.servers))
		for i, name := range s.servers {
			s.items[i] = SuggestionItem{Text: name, Description: "select this server", Type: "server"}
		}
	default:
		s.hide()
		return
	}
	s.visible = true
	s.filter(strings.ToLower(input[1:]))
}

func (s *Suggestions) hide() {
	s.visible = false
	s.filtered = nil
	s.prefix = ""
}

func (s *Suggestions) filter(query string) {
	s.selectedIdx = 0
	if query == "" {
		s.filtered = s.items
		return
	}
	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion.
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion.
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion.
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently shown.
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	header := "Commands"
	if s.prefix == "@" {
		header = "Servers"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header))
	b.WriteString("\n")

	const maxVisible = 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(helpStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		if i == s.selectedIdx {
			b.WriteString(selectedStyle.Render("> "+item.Text) + " " + helpStyle.Render(item.Description))
		} else {
			b.WriteString("  " + item.Text + " " + helpStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(b.String())
}
