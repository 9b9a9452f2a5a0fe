package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/unitgate/pkg/api"
	"github.com/modoterra/unitgate/pkg/client"
	"github.com/modoterra/unitgate/pkg/core"
)

// RefreshInterval is how often the unit list is re-read.
const RefreshInterval = 5 * time.Second

// logLines is how many journal lines the logs pane requests.
const logLines = 50

// API is the subset of the unitgate client the TUI uses.
type API interface {
	List(ctx context.Context) (core.Index, error)
	Status(ctx context.Context, ordinal int, expect string) (*client.StatusReply, error)
	Logs(ctx context.Context, ordinal, n int, expect string) ([]string, error)
	Action(ctx context.Context, ordinal int, verb core.Verb, expect string) ([]string, error)
}

// Pane identifies which TUI pane is focused.
type Pane int

const (
	PaneList Pane = iota
	PaneDetail
	PaneLogs
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeConfirm
)

// row is a unit with its ordinal in the server's listing.
type row struct {
	ordinal int
	unit    core.Unit
}

// App is the root Bubble Tea model.
type App struct {
	client API

	// State
	units       core.Index
	selectedIdx int
	detail      *client.StatusReply
	logLines    []string
	logUnit     string

	// UI
	activePane Pane
	mode       Mode
	search     textinput.Model
	width      int
	height     int

	// Action confirmation
	pendingVerb core.Verb
	pendingRow  row

	statusMsg string
}

// New creates a new TUI app model.
func New(c API) App {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 64

	return App{
		client:     c,
		search:     si,
		activePane: PaneList,
		mode:       ModeNormal,
	}
}

// Init loads the unit list.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		fetchUnitsCmd(a.client),
		tickCmd(),
		tea.SetWindowTitle("unitgate"),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// unitsMsg carries a fresh listing.
type unitsMsg struct{ units core.Index }

// statusMsg carries the status of one unit.
type statusMsg struct {
	ordinal int
	reply   *client.StatusReply
}

// logsMsg carries a journal tail.
type logsMsg struct {
	unit  string
	lines []string
}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// actionResultMsg carries the result of an action.
type actionResultMsg struct {
	msg   string
	lines []string
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchUnitsCmd(c API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		units, err := c.List(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return unitsMsg{units}
	}
}

func fetchStatusCmd(c API, r row) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		reply, err := c.Status(ctx, r.ordinal, r.unit.Filename)
		if err != nil {
			return errorMsg{err}
		}
		return statusMsg{ordinal: r.ordinal, reply: reply}
	}
}

func fetchLogsCmd(c API, r row) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		lines, err := c.Logs(ctx, r.ordinal, logLines, r.unit.Filename)
		if err != nil {
			return errorMsg{err}
		}
		return logsMsg{unit: r.unit.Filename, lines: lines}
	}
}

func actionCmd(c API, r row, verb core.Verb) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		lines, err := c.Action(ctx, r.ordinal, verb, r.unit.Filename)
		if err != nil {
			return errorMsg{err}
		}
		return actionResultMsg{msg: string(verb) + " → " + r.unit.Filename, lines: lines}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tickMsg:
		return a, tea.Batch(tickCmd(), fetchUnitsCmd(a.client))

	case unitsMsg:
		a.applyUnits(msg.units)
		return a, nil

	case statusMsg:
		a.detail = msg.reply
		if msg.reply.Warning != "" {
			a.statusMsg = "warning: status output had no journal boundary"
		}
		return a, nil

	case logsMsg:
		a.logUnit = msg.unit
		a.logLines = msg.lines
		return a, nil

	case actionResultMsg:
		a.statusMsg = msg.msg
		if len(msg.lines) > 0 {
			a.statusMsg += ": " + strings.Join(msg.lines, "; ")
		}
		return a, fetchUnitsCmd(a.client)

	case errorMsg:
		if errors.Is(msg.err, api.ErrUnitMismatch) {
			a.statusMsg = "unit list changed, refreshing"
			return a, fetchUnitsCmd(a.client)
		}
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

// applyUnits replaces the listing and keeps the cursor on the same unit
// when it is still present.
func (a *App) applyUnits(units core.Index) {
	var current string
	if r, ok := a.selectedRow(); ok {
		current = r.unit.Filename
	}

	a.units = units
	rows := a.filteredRows()
	if current != "" {
		for i, r := range rows {
			if r.unit.Filename == current {
				a.selectedIdx = i
				return
			}
		}
	}
	if a.selectedIdx >= len(rows) {
		a.selectedIdx = max(0, len(rows)-1)
	}
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search mode
	if a.mode == ModeSearch {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.SetValue("")
			a.search.Blur()
			a.selectedIdx = 0
			return a, nil
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
			return a, nil
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			a.selectedIdx = 0
			return a, cmd
		}
	}

	// Action confirmation mode
	if a.mode == ModeConfirm {
		r, verb := a.pendingRow, a.pendingVerb
		a.mode = ModeNormal
		a.pendingVerb = ""
		switch msg.String() {
		case "y", "Y":
			a.statusMsg = string(verb) + " " + r.unit.Filename + "..."
			return a, actionCmd(a.client, r, verb)
		default:
			a.statusMsg = string(verb) + " cancelled"
			return a, nil
		}
	}

	// Normal mode
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.activePane == PaneList {
			a.selectedIdx = max(0, min(a.selectedIdx+1, len(a.filteredRows())-1))
		}
	case "k", "up":
		if a.activePane == PaneList && a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "tab":
		a.activePane = (a.activePane + 1) % 3

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	case "ctrl+r":
		a.statusMsg = "refreshing"
		return a, fetchUnitsCmd(a.client)

	case "enter":
		if r, ok := a.selectedRow(); ok {
			a.activePane = PaneDetail
			return a, fetchStatusCmd(a.client, r)
		}

	case "l":
		if r, ok := a.selectedRow(); ok {
			a.activePane = PaneLogs
			return a, fetchLogsCmd(a.client, r)
		}

	case "t":
		return a.confirmAction(core.VerbStart)
	case "s":
		return a.confirmAction(core.VerbStop)
	case "r":
		return a.confirmAction(core.VerbRestart)
	}

	return a, nil
}

func (a App) confirmAction(verb core.Verb) (tea.Model, tea.Cmd) {
	r, ok := a.selectedRow()
	if !ok {
		return a, nil
	}
	a.pendingRow = r
	a.pendingVerb = verb
	a.mode = ModeConfirm
	a.statusMsg = strings.ToUpper(string(verb[:1])) + string(verb[1:]) + " " + r.unit.Filename + "? (y/n)"
	return a, nil
}

// filteredRows returns the units matching the search, each with its
// ordinal in the unfiltered listing.
func (a App) filteredRows() []row {
	q := strings.ToLower(a.search.Value())
	rows := make([]row, 0, len(a.units))
	for i, u := range a.units {
		if q == "" ||
			strings.Contains(strings.ToLower(u.Filename), q) ||
			strings.Contains(strings.ToLower(u.Description), q) ||
			strings.Contains(strings.ToLower(u.Active), q) {
			rows = append(rows, row{ordinal: i, unit: u})
		}
	}
	return rows
}

func (a App) selectedRow() (row, bool) {
	rows := a.filteredRows()
	if a.selectedIdx < 0 || a.selectedIdx >= len(rows) {
		return row{}, false
	}
	return rows[a.selectedIdx], true
}
