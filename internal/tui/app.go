// Package tui provides the interactive terminal UI for mcpctl.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/catalog"
	"github.com/fentz26/mcpctl/internal/codec"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

type viewMode int

const (
	modeServers viewMode = iota
	modeTools
	modeQuery
)

func (m viewMode) String() string {
	switch m {
	case modeTools:
		return "tools"
	case modeQuery:
		return "query"
	default:
		return "servers"
	}
}

const helpText = "add <name> <cmd> [args] | edit <name> <cmd> [args] | env <name> K=V... | rm [name] | tools [server] [model] | model [name] | ask <prompt> | import/export <path>"

// App is the main TUI application model.
type App struct {
	session *session.Session
	feed    *HealthFeed
	ctx     context.Context

	servers     []models.ServerDefinition
	selectedIdx int

	model        string
	modelChoices []string
	toolSel      catalog.Selection
	result       *models.QueryResult

	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	suggestions *Suggestions

	width   int
	height  int
	mode    viewMode
	conn    models.ConnectivityState
	message string

	// busy is set while a mutation or query is outstanding. Further
	// submissions are refused until it clears.
	busy      bool
	busyLabel string
}

// New creates the TUI for sess. feed may be nil when connectivity updates
// are not wanted.
func New(sess *session.Session, feed *HealthFeed) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <name> <command> [args] | tools | ask <prompt> | / for commands"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &App{
		session:      sess,
		feed:         feed,
		ctx:          context.Background(),
		model:        sess.DefaultModel(),
		modelChoices: sess.Config.ModelChoices(),
		input:        ti,
		viewport:     viewport.New(80, 20),
		spinner:      sp,
		suggestions:  NewSuggestions(),
		conn:         models.Checking(),
	}
}

// Run starts health polling and the TUI, and stops polling on exit.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	a.session.Health.Start(ctx)
	defer a.session.Health.Stop()

	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.loadServers(),
		a.feed.Wait(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			a.input.SetValue("")
			a.suggestions.Update("")
			a.mode = modeServers
			return a, nil

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.mode == modeServers && a.selectedIdx > 0 {
				a.selectedIdx--
			} else if a.mode == modeQuery {
				a.viewport.ScrollUp(1)
			}
			return a, nil

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.mode == modeServers && a.selectedIdx < len(a.servers)-1 {
				a.selectedIdx++
			} else if a.mode == modeQuery {
				a.viewport.ScrollDown(1)
			}
			return a, nil

		case "pgup", "pgdown":
			if a.mode == modeQuery {
				var cmd tea.Cmd
				a.viewport, cmd = a.viewport.Update(msg)
				return a, cmd
			}

		case "tab":
			if a.acceptSuggestion() {
				return a, nil
			}
			a.mode = (a.mode + 1) % 3
			return a, nil

		case "ctrl+r":
			return a, a.refresh()

		case "enter":
			if a.acceptSuggestion() {
				return a, nil
			}
			input := strings.TrimSpace(a.input.Value())
			if input != "" {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, a.submit(input)
			}
			if a.mode == modeServers && len(a.servers) > 0 {
				a.mode = modeTools
				return a, a.fetchTools(a.servers[a.selectedIdx].Name)
			}
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = max(msg.Height-14, 3)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case connectivityMsg:
		a.conn = msg.state
		return a, a.feed.Wait()

	case serversLoadedMsg:
		a.setServers(msg.servers)
		return a, nil

	case removedMsg:
		a.endBusy()
		a.setServers(a.session.Registry.Snapshot())
		a.message = fmt.Sprintf("✓ Removed server %s", msg.name)
		return a, nil

	case commandResultMsg:
		a.endBusy()
		a.message = msg.message
		if msg.relist {
			return a, a.loadServers()
		}
		return a, nil

	case toolsLoadedMsg:
		if msg.sel == a.toolSel {
			a.message = fmt.Sprintf("%d tools from %s (%s)", msg.count, msg.sel.Server, msg.sel.Model)
		}
		return a, nil

	case queryDoneMsg:
		a.endBusy()
		a.result = msg.result
		a.viewport.SetContent(msg.result.Text)
		a.viewport.GotoTop()
		a.message = fmt.Sprintf("✓ Answered in %s", msg.result.Elapsed.Round(time.Millisecond))
		return a, nil

	case errMsg:
		if msg.endsBusy {
			a.endBusy()
		}
		if errors.Is(msg.err, catalog.ErrSuperseded) {
			return a, nil
		}
		a.message = "Error: " + apiclient.Message(msg.err)
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())

	return a, tea.Batch(cmds...)
}

// acceptSuggestion applies the highlighted suggestion, if any.
func (a *App) acceptSuggestion() bool {
	selected := a.suggestions.Selected()
	if selected == nil {
		return false
	}
	switch selected.Type {
	case "server":
		a.selectServer(selected.Text)
		a.input.SetValue("")
	default:
		a.input.SetValue(selected.Text + " ")
		a.input.CursorEnd()
	}
	a.suggestions.Update("")
	return true
}

func (a *App) setServers(servers []models.ServerDefinition) {
	a.servers = servers
	if a.selectedIdx >= len(a.servers) {
		a.selectedIdx = max(0, len(a.servers)-1)
	}
	names := make([]string, len(servers))
	for i, s := range servers {
		names[i] = s.Name
	}
	a.suggestions.SetServers(names)
}

func (a *App) selectServer(name string) {
	for i, s := range a.servers {
		if s.Name == name {
			a.selectedIdx = i
			return
		}
	}
}

func (a *App) selectedName() string {
	if len(a.servers) == 0 {
		return ""
	}
	return a.servers[a.selectedIdx].Name
}

func (a *App) startBusy(label string) {
	a.busy = true
	a.busyLabel = label
	a.message = ""
}

func (a *App) endBusy() {
	a.busy = false
	a.busyLabel = ""
}

// setModel switches the active model. An empty name cycles through the
// configured choices.
func (a *App) setModel(name string) {
	if name == "" {
		if len(a.modelChoices) == 0 {
			return
		}
		idx := 0
		for i, m := range a.modelChoices {
			if m == a.model {
				idx = (i + 1) % len(a.modelChoices)
				break
			}
		}
		name = a.modelChoices[idx]
	}
	a.model = name
	a.message = "Model: " + name
}

// submit runs one typed command.
func (a *App) submit(input string) tea.Cmd {
	input = strings.TrimPrefix(input, "/")
	name, rest := splitFirst(input)

	switch name {
	case "q", "quit", "exit":
		return tea.Quit
	case "help":
		a.message = helpText
		return nil
	case "refresh":
		return a.refresh()
	case "model":
		a.setModel(rest)
		if a.mode == modeTools && a.toolSel.Server != "" {
			return a.fetchTools(a.toolSel.Server)
		}
		return nil
	case "tools":
		server, model := splitFirst(rest)
		if server == "" {
			server = a.selectedName()
		}
		if server == "" {
			a.message = "Error: no server selected"
			return nil
		}
		if model != "" {
			a.setModel(model)
		}
		a.selectServer(server)
		a.mode = modeTools
		return a.fetchTools(server)
	}

	if a.busy {
		a.message = fmt.Sprintf("Error: %s still in progress", a.busyLabel)
		return nil
	}

	switch name {
	case "add":
		return a.addServer(rest)
	case "edit":
		return a.editServer(rest)
	case "env":
		return a.setEnv(rest)
	case "rm", "remove", "delete":
		return a.removeServer(rest)
	case "ask", "query":
		return a.runQuery(rest)
	case "import":
		return a.importConfig(rest)
	case "export":
		return a.exportConfig(rest)
	default:
		a.message = fmt.Sprintf("Unknown: %s (try: add, edit, rm, tools, ask, help)", name)
		return nil
	}
}

func (a *App) refresh() tea.Cmd {
	switch a.mode {
	case modeTools:
		sel := a.toolSel
		if sel.Server == "" {
			return nil
		}
		return func() tea.Msg {
			tools, err := a.session.Catalog.Refresh(a.ctx)
			if err != nil {
				return errMsg{err: err}
			}
			return toolsLoadedMsg{sel: sel, count: len(tools)}
		}
	default:
		return a.loadServers()
	}
}

func (a *App) loadServers() tea.Cmd {
	return func() tea.Msg {
		servers, err := a.session.Registry.List(a.ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return serversLoadedMsg{servers}
	}
}

// fetchTools selects server under the current model. The view hides any
// catalog that does not match the selection.
func (a *App) fetchTools(server string) tea.Cmd {
	sel := catalog.Selection{Server: server, Model: a.model}
	a.toolSel = sel
	return func() tea.Msg {
		tools, err := a.session.Catalog.Fetch(a.ctx, sel.Server, sel.Model)
		if err != nil {
			return errMsg{err: err}
		}
		return toolsLoadedMsg{sel: sel, count: len(tools)}
	}
}

func (a *App) parseLaunch(rest string) (models.ServerDefinition, error) {
	name, rest := splitFirst(rest)
	command, argText := splitFirst(rest)
	args, err := a.session.Args.Decode(argText)
	if err != nil {
		return models.ServerDefinition{}, fmt.Errorf("args: %w", err)
	}
	return models.ServerDefinition{Name: name, Command: command, Args: args}, nil
}

func (a *App) addServer(rest string) tea.Cmd {
	def, err := a.parseLaunch(rest)
	if err != nil {
		a.message = "Error: " + err.Error()
		return nil
	}
	a.startBusy("add")
	return func() tea.Msg {
		if err := a.session.Registry.Add(a.ctx, def); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return commandResultMsg{message: fmt.Sprintf("✓ Added server %s", def.Name), relist: true}
	}
}

// editServer replaces command and args, keeping the cached env.
func (a *App) editServer(rest string) tea.Cmd {
	def, err := a.parseLaunch(rest)
	if err != nil {
		a.message = "Error: " + err.Error()
		return nil
	}
	if current, ok := a.session.Registry.Get(def.Name); ok {
		def.Env = current.Env
	}
	a.startBusy("edit")
	return func() tea.Msg {
		if err := a.session.Registry.Update(a.ctx, def); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return commandResultMsg{message: fmt.Sprintf("✓ Updated server %s", def.Name), relist: true}
	}
}

// setEnv replaces the env of a cached server, keeping command and args.
func (a *App) setEnv(rest string) tea.Cmd {
	name, pairs := splitFirst(rest)
	current, ok := a.session.Registry.Get(name)
	if !ok {
		a.message = fmt.Sprintf("Error: unknown server %q", name)
		return nil
	}
	current.Env = codec.DecodeEnv(strings.Join(strings.Fields(pairs), "\n"))
	a.startBusy("env")
	return func() tea.Msg {
		if err := a.session.Registry.Update(a.ctx, current); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return commandResultMsg{message: fmt.Sprintf("✓ Updated env of %s", name), relist: true}
	}
}

// removeServer deletes name, or the selected server. The local list is
// trimmed without a re-list.
func (a *App) removeServer(name string) tea.Cmd {
	if name == "" {
		name = a.selectedName()
	}
	a.startBusy("remove")
	return func() tea.Msg {
		if err := a.session.Registry.Remove(a.ctx, name); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return removedMsg{name: name}
	}
}

func (a *App) runQuery(prompt string) tea.Cmd {
	server := a.selectedName()
	model := a.model
	a.mode = modeQuery
	a.startBusy("query")
	return func() tea.Msg {
		res, err := a.session.Query.Execute(a.ctx, server, prompt, model)
		if err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return queryDoneMsg{result: res}
	}
}

func (a *App) importConfig(path string) tea.Cmd {
	a.startBusy("import")
	return func() tea.Msg {
		if err := a.session.Registry.Import(a.ctx, path); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return commandResultMsg{message: "✓ Imported " + path, relist: true}
	}
}

func (a *App) exportConfig(path string) tea.Cmd {
	a.startBusy("export")
	return func() tea.Msg {
		if err := a.session.Registry.Export(a.ctx, path); err != nil {
			return errMsg{err: err, endsBusy: true}
		}
		return commandResultMsg{message: "✓ Exported to " + path}
	}
}

// splitFirst returns the first whitespace-delimited token and the trimmed
// remainder.
func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

type commandResultMsg struct {
	message string
	relist  bool
}

type errMsg struct {
	err      error
	endsBusy bool
}

type serversLoadedMsg struct {
	servers []models.ServerDefinition
}

type removedMsg struct {
	name string
}

type toolsLoadedMsg struct {
	sel   catalog.Selection
	count int
}

type queryDoneMsg struct {
	result *models.QueryResult
}

type connectivityMsg struct {
	state models.ConnectivityState
}
