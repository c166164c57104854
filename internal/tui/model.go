// Package tui runs the experiment in the terminal with Bubble Tea.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/neolog/internal/experiment"
	"github.com/verte-zerg/neolog/internal/keylog"
)

// tickInterval bounds timer and blink latency.
const tickInterval = 50 * time.Millisecond

type tickMsg time.Time

// Model drives an experiment session inside a Bubble Tea program.
type Model struct {
	session   *experiment.Session
	maxWidth  int
	maxHeight int
	now       func() time.Time

	width  int
	height int
}

var (
	textStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	wordStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	typedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	caretStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	continueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	continueDimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel wraps s. maxWidth and maxHeight bound the content box in cells;
// zero leaves a dimension to the terminal.
func NewModel(s *experiment.Session, maxWidth, maxHeight int) *Model {
	return &Model{
		session:   s,
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		now:       time.Now,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.session.Start(m.now())
	if m.session.Done() {
		return tea.Quit
	}
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.session.Tick(time.Time(msg))
		if m.session.Done() {
			return m, tea.Quit
		}
		return m, tick()
	case tea.KeyMsg:
		at := m.now()
		for _, key := range KeyTokens(msg) {
			m.session.HandleKey(experiment.KeyEvent{Key: key, At: at})
			if m.session.Done() {
				return m, tea.Quit
			}
		}
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	return renderFrame(m.session.Frame(m.now()), m.width, m.height, m.maxWidth, m.maxHeight)
}

// KeyTokens maps a Bubble Tea key message to session key tokens.
// Pasted or composed input yields one token per rune.
func KeyTokens(msg tea.KeyMsg) []string {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		return []string{keylog.KeyEscape}
	case tea.KeyEnter:
		return []string{keylog.KeyReturn}
	case tea.KeyBackspace, tea.KeyDelete:
		return []string{keylog.KeyBackspace}
	case tea.KeySpace:
		return []string{keylog.KeySpace}
	case tea.KeyRunes:
		tokens := make([]string, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			if r == ' ' {
				tokens = append(tokens, keylog.KeySpace)
				continue
			}
			tokens = append(tokens, string(r))
		}
		return tokens
	default:
		return []string{msg.String()}
	}
}

func renderFrame(f experiment.Frame, width, height, maxWidth, maxHeight int) string {
	contentWidth := maxWidth
	if width > 0 && (contentWidth <= 0 || contentWidth > width-4) {
		contentWidth = width - 4
	}
	if contentWidth < 1 {
		contentWidth = 1
	}

	var content string
	switch f.Kind {
	case experiment.FrameText:
		content = lipgloss.NewStyle().Width(contentWidth).Align(lipgloss.Center).Render(wrapText(f.Text, contentWidth, textStyle))
		if f.Continue != "" {
			style := continueDimStyle
			if f.ContinueBright {
				style = continueStyle
			}
			content = lipgloss.JoinVertical(lipgloss.Center, content, "", "", style.Render(f.Continue))
		}
	case experiment.FrameTyping:
		typed := wrapStyledRunes(buildTypedRunes(f.Typed, f.CaretVisible), contentWidth)
		content = lipgloss.JoinVertical(lipgloss.Center, wordStyle.Render(f.Target), "", typed)
	}

	if maxHeight > 0 {
		content = lipgloss.NewStyle().MaxHeight(maxHeight).Render(content)
	}
	if width == 0 || height == 0 {
		return content
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
