// Package statsui provides the Bubble Tea session browser.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/stats"
	"github.com/verte-zerg/neolog/internal/store"
)

const (
	viewList = iota
	viewDetail
)

const sinceLayout = "2006-01-02"

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Model lists archived sessions and opens the report of the selected one.
type Model struct {
	ctx    context.Context
	store  *store.Store
	filter model.SessionFilter

	sessions []model.SessionSummary
	table    table.Model
	detail   viewport.Model
	view     int
	detailID string
	errMsg   string

	width  int
	height int
}

// NewModel constructs a browser over the sessions matching filter.
func NewModel(ctx context.Context, st *store.Store, filter model.SessionFilter) *Model {
	m := &Model{
		ctx:    ctx,
		store:  st,
		filter: filter,
		detail: viewport.New(0, 0),
		table: table.New(
			table.WithColumns(sessionColumns()),
			table.WithFocused(true),
			table.WithHeight(10),
		),
	}
	m.table.SetStyles(tableStyles())
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.view == viewDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "r":
		m.refresh()
		return m, nil
	case "enter":
		m.openSelected()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "backspace":
		m.view = viewList
		m.detailID = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 2
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = maxInt(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.table.SetWidth(m.width)
	m.table.SetHeight(bodyHeight)
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
}

func (m *Model) setError(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == m.errMsg {
		return
	}
	m.errMsg = msg
	m.updateLayout()
}

func (m *Model) refresh() {
	sessions, err := m.store.ListSessions(m.ctx, m.filter)
	if err != nil {
		m.setError(fmt.Errorf("failed to list sessions: %w", err))
		return
	}
	m.sessions = sessions
	rows := make([]table.Row, len(sessions))
	for i, s := range sessions {
		rows[i] = table.Row(stats.SessionRow(s))
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	m.setError(nil)
}

func (m *Model) openSelected() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sessions) {
		return
	}
	id := m.sessions[idx].ID
	report, err := stats.BuildReport(m.ctx, m.store, id)
	if err != nil {
		m.setError(err)
		return
	}
	var buf bytes.Buffer
	if err := stats.RenderReport(&buf, report); err != nil {
		m.setError(err)
		return
	}
	m.detail.SetContent(strings.TrimRight(buf.String(), "\n"))
	m.detail.GotoTop()
	m.detailID = id
	m.view = viewDetail
	m.setError(nil)
}

func (m *Model) renderHeader() string {
	if m.view == viewDetail {
		return titleStyle.Render("Session " + m.detailID)
	}
	line := titleStyle.Render("Sessions") + headerStyle.Render(fmt.Sprintf("  %d archived", len(m.sessions)))
	if summary := m.renderFilterSummary(); summary != "" {
		line += headerStyle.Render("  " + summary)
	}
	return line
}

func (m *Model) renderFilterSummary() string {
	var parts []string
	if m.filter.Name != "" {
		parts = append(parts, "name="+m.filter.Name)
	}
	if m.filter.Language != "" {
		parts = append(parts, "lang="+m.filter.Language)
	}
	if m.filter.Status != "" {
		parts = append(parts, "status="+string(m.filter.Status))
	}
	if m.filter.Since != nil {
		parts = append(parts, "since="+m.filter.Since.Format(sinceLayout))
	}
	if m.filter.Last > 0 {
		parts = append(parts, fmt.Sprintf("last=%d", m.filter.Last))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderBody() string {
	if m.view == viewDetail {
		return m.detail.View()
	}
	if len(m.sessions) == 0 {
		return headerStyle.Render("No sessions found.")
	}
	return m.table.View()
}

func (m *Model) renderFooter() string {
	help := "enter: show  r: reload  q: quit"
	if m.view == viewDetail {
		help = "up/down: scroll  esc: back  ctrl+c: quit"
	}
	lines := []string{headerStyle.Render(help)}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func sessionColumns() []table.Column {
	widths := []int{36, 16, 16, 4, 12, 7, 6}
	cols := make([]table.Column, len(stats.SessionHeaders))
	for i, title := range stats.SessionHeaders {
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}
	return cols
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
