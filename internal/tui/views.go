package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/mcpctl/internal/models"
)

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("MCP Control")
	header += "  " + a.renderConnectivity()
	header += "  " + mutedStyle.Render(a.session.Client.BaseURL())
	header += "  " + modeStyle.Render("model: "+a.model)
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	contentHeight := max(a.height-8, 5)

	switch a.mode {
	case modeServers:
		b.WriteString(a.renderServers(contentHeight))
	case modeTools:
		b.WriteString(a.renderTools())
	case modeQuery:
		b.WriteString(a.renderQuery())
	}

	// Message bar
	b.WriteString("\n")
	switch {
	case a.busy:
		b.WriteString(a.spinner.View() + " " + a.busyLabel + "...")
	case a.message != "":
		style := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			style = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(style.Render(a.message))
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modeServers:
		status = fmt.Sprintf(" Servers: %d | ↑↓:select | Enter:tools | Tab:next view | Ctrl+R:refresh | Ctrl+C:quit", len(a.servers))
	case modeTools:
		status = " Tools | model <name>:switch | Ctrl+R:refresh | Tab:next view | Esc:back"
	case modeQuery:
		status = " Query | ask <prompt> | ↑↓ PgUp PgDn:scroll | Tab:next view | Esc:back"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(status))

	return b.String()
}

func (a *App) renderConnectivity() string {
	switch a.conn.Status {
	case models.ConnectivityConnected:
		return connectedStyle.Render("● " + a.conn.String())
	case models.ConnectivityDisconnected:
		return disconnectedStyle.Render("○ " + a.conn.String())
	default:
		return checkingStyle.Render("◌ " + a.conn.String())
	}
}

func (a *App) renderServers(height int) string {
	if len(a.servers) == 0 {
		if !a.session.Registry.Loaded() {
			return "\n  Loading servers...\n"
		}
		return "\n  No servers registered. Type: add <name> <command> [args...]\n"
	}

	var lines []string
	for i, s := range a.servers {
		launch := s.Command
		if len(s.Args) > 0 {
			launch += " " + a.session.Args.Encode(s.Args)
		}
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("> %-20s %s", s.Name, launch)))
			if keys := s.EnvKeys(); len(keys) > 0 {
				lines = append(lines, mutedStyle.Render("      env: "+strings.Join(keys, ", ")))
			}
		} else {
			lines = append(lines, itemStyle.Render(fmt.Sprintf("  %-20s %s", s.Name, mutedStyle.Render(launch))))
		}
	}

	if len(lines) > height {
		start := max(0, a.selectedIdx-height/2)
		end := min(start+height, len(lines))
		start = max(0, end-height)
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderTools() string {
	var b strings.Builder

	if a.toolSel.Server == "" {
		b.WriteString("\n  No server selected. Type: tools <server> [model]\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("\n  Tools of %s %s\n",
		lipgloss.NewStyle().Bold(true).Render(a.toolSel.Server),
		mutedStyle.Render("("+a.toolSel.Model+")")))
	b.WriteString("  " + strings.Repeat("─", 40) + "\n")

	snap := a.session.Catalog.Snapshot()
	switch {
	case snap.Selection != a.toolSel || snap.Loading:
		b.WriteString("  " + a.spinner.View() + " Loading tools...\n")
		return b.String()
	case snap.Err != nil:
		b.WriteString("  " + disconnectedStyle.Render(snap.Err.Error()) + "\n")
		return b.String()
	case !snap.Loaded:
		b.WriteString("  Not loaded. Press Ctrl+R to fetch.\n")
		return b.String()
	case len(snap.Tools) == 0:
		b.WriteString("  This server exposes no tools for this model.\n")
		return b.String()
	}

	for _, t := range snap.Tools {
		b.WriteString("  " + headerCellStyle.Render(t.Name))
		if t.Description != "" {
			b.WriteString("  " + mutedStyle.Render(t.Description))
		}
		b.WriteString("\n")
		params, err := t.Params()
		if err != nil {
			b.WriteString("      " + helpStyle.Render("parameters: "+string(t.Parameters)) + "\n")
			continue
		}
		for _, p := range params {
			line := fmt.Sprintf("      %s: %s", p.Name, p.Type)
			if p.Required {
				line += requiredStyle.Render(" *")
			}
			if p.Description != "" {
				line += "  " + helpStyle.Render(p.Description)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func (a *App) renderQuery() string {
	var b strings.Builder

	server := a.selectedName()
	if server == "" {
		server = "(none)"
	}
	b.WriteString(fmt.Sprintf("\n  Query %s %s\n",
		lipgloss.NewStyle().Bold(true).Render(server),
		mutedStyle.Render("("+a.model+")")))
	b.WriteString("  " + strings.Repeat("─", 40) + "\n")

	if a.busy && a.busyLabel == "query" {
		b.WriteString("  " + a.spinner.View() + " Running query...\n")
		return b.String()
	}
	if a.result == nil {
		b.WriteString("  " + helpStyle.Render("Type: ask <prompt>") + "\n")
		return b.String()
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("  > %s  [%s/%s]", a.result.Prompt, a.result.Server, a.result.Model)) + "\n\n")
	b.WriteString(a.viewport.View())
	return b.String()
}
