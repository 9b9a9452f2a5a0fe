package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusPending = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	statusBarH := 2
	logPaneH := max(a.height/4, 5)
	mainH := a.height - logPaneH - statusBarH - 2
	listW := a.width*2/5 - 2
	detailW := a.width - listW - 4

	list := a.renderList(listW, mainH)
	listPane := a.paneBox(PaneList, " Units ", list, listW, mainH)

	detail := a.renderDetail(detailW)
	detailPane := a.paneBox(PaneDetail, " Status ", detail, detailW, mainH)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)

	logs := a.renderLogs(a.width-4, logPaneH)
	logPane := a.paneBox(PaneLogs, a.logTitle(), logs, a.width-4, logPaneH)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, logPane, a.renderStatusBar())
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) renderList(w, h int) string {
	rows := a.filteredRows()

	var b strings.Builder
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("no units"))
	}

	maxVisible := h - 2
	start := 0
	if a.selectedIdx >= maxVisible {
		start = a.selectedIdx - maxVisible + 1
	}

	for i := start; i < len(rows) && i-start < maxVisible; i++ {
		u := rows[i].unit
		indicator := stateIndicator(u.Active)
		name := truncate(u.Filename, w-6)
		line := fmt.Sprintf(" %s %-*s", indicator, w-6, name)

		if i == a.selectedIdx {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}

	if a.mode == ModeSearch {
		b.WriteString("\n" + a.search.View())
	}

	return b.String()
}

func (a App) renderDetail(w int) string {
	r, ok := a.selectedRow()
	if !ok {
		return dimStyle.Render("select a unit")
	}
	u := r.unit

	var b strings.Builder
	fmt.Fprintf(&b, "Unit:    %s\n", u.ServiceName())
	fmt.Fprintf(&b, "Ordinal: %d\n", r.ordinal)
	fmt.Fprintf(&b, "Load:    %s\n", u.Load)
	fmt.Fprintf(&b, "Active:  %s\n", colorState(u.Active))
	fmt.Fprintf(&b, "Sub:     %s\n", u.Sub)
	fmt.Fprintf(&b, "Desc:    %s\n", truncate(u.Description, w-9))

	if a.detail == nil || a.detail.Unit != u.Filename {
		b.WriteString("\n" + dimStyle.Render("enter: load status"))
		return b.String()
	}

	b.WriteString("\n")
	labels := make([]string, 0, len(a.detail.Fields))
	for label := range a.detail.Fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		line := fmt.Sprintf("%s: %s", label, a.detail.Fields[label])
		b.WriteString(truncate(line, w) + "\n")
	}
	return b.String()
}

func (a App) renderLogs(w, h int) string {
	if len(a.logLines) == 0 {
		return dimStyle.Render("l: load journal")
	}

	start := 0
	if len(a.logLines) > h-1 {
		start = len(a.logLines) - h + 1
	}

	var b strings.Builder
	for i := start; i < len(a.logLines); i++ {
		b.WriteString(truncate(a.logLines[i], w) + "\n")
	}
	return b.String()
}

func (a App) logTitle() string {
	if a.logUnit == "" {
		return " Journal "
	}
	return " Journal " + dimStyle.Render(a.logUnit) + " "
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "j/k:nav enter:status l:logs /:search t:start s:stop r:restart ^r:refresh q:quit"
	switch a.mode {
	case ModeSearch:
		right = "enter:apply esc:cancel"
	case ModeConfirm:
		right = "y:confirm any:cancel"
	}

	gap := a.width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func stateIndicator(active string) string {
	switch active {
	case "active":
		return statusRunning.Render("●")
	case "inactive":
		return statusStopped.Render("○")
	case "failed":
		return statusFailed.Render("✖")
	case "activating", "deactivating", "reloading":
		return statusPending.Render("↻")
	default:
		return dimStyle.Render("?")
	}
}

func colorState(active string) string {
	switch active {
	case "active":
		return statusRunning.Render(active)
	case "inactive":
		return statusStopped.Render(active)
	case "failed":
		return statusFailed.Render(active)
	case "activating", "deactivating", "reloading":
		return statusPending.Render(active)
	default:
		return dimStyle.Render(active)
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
