package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/texts"
)

// Genders offered by the participant form.
var Genders = []string{"m", "w", "d"}

// SetupResult is what the operator entered before the session starts.
type SetupResult struct {
	Language  string
	WordCount string
	Name      string
	Age       string
	Gender    string
}

type fieldKind int

const (
	fieldLanguage fieldKind = iota
	fieldWordCount
	fieldName
	fieldAge
	fieldGender
)

var setupPages = [][]fieldKind{
	{fieldLanguage, fieldWordCount},
	{fieldName, fieldAge, fieldGender},
}

const (
	labelWidth = 14
	inputWidth = 28
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	focusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Setup is the two-page form that collects the experiment language, the
// word count and the participant's details.
type Setup struct {
	texts     *texts.Provider
	languages []string
	langIdx   int
	genderIdx int

	wordCount textinput.Model
	name      textinput.Model
	age       textinput.Model

	page  int
	focus int

	done      bool
	cancelled bool

	width  int
	height int
}

// NewSetup builds the form. languages lists the selectable languages;
// defaultLang is preselected when present.
func NewSetup(provider *texts.Provider, languages []string, defaultLang, defaultWordCount string) *Setup {
	if len(languages) == 0 {
		languages = []string{defaultLang}
	}
	s := &Setup{
		texts:     provider,
		languages: languages,
		wordCount: newInput(defaultWordCount, 8),
		name:      newInput("", 64),
		age:       newInput("", 3),
	}
	for i, lang := range languages {
		if lang == defaultLang {
			s.langIdx = i
		}
	}
	s.refocus()
	return s
}

func newInput(value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = limit
	in.Width = inputWidth
	in.SetValue(value)
	return in
}

// Result returns the entered values and whether the form was confirmed.
func (s *Setup) Result() (SetupResult, bool) {
	if !s.done || s.cancelled {
		return SetupResult{}, false
	}
	wordCount := strings.TrimSpace(s.wordCount.Value())
	if wordCount == "" {
		wordCount = model.DefaultWordCount
	}
	return SetupResult{
		Language:  s.language(),
		WordCount: wordCount,
		Name:      strings.TrimSpace(s.name.Value()),
		Age:       strings.TrimSpace(s.age.Value()),
		Gender:    Genders[s.genderIdx],
	}, true
}

// Init implements tea.Model.
func (s *Setup) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (s *Setup) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			s.cancelled = true
			return s, tea.Quit
		case tea.KeyEnter:
			return s, s.advance()
		case tea.KeyTab, tea.KeyDown:
			s.move(1)
			return s, nil
		case tea.KeyShiftTab, tea.KeyUp:
			s.move(-1)
			return s, nil
		case tea.KeyLeft, tea.KeyRight:
			delta := 1
			if msg.Type == tea.KeyLeft {
				delta = -1
			}
			if s.cycle(delta) {
				return s, nil
			}
		}
	}
	return s, s.updateInput(msg)
}

func (s *Setup) current() fieldKind {
	return setupPages[s.page][s.focus]
}

func (s *Setup) advance() tea.Cmd {
	if s.focus < len(setupPages[s.page])-1 {
		s.move(1)
		return nil
	}
	if s.page < len(setupPages)-1 {
		s.page++
		s.focus = 0
		s.refocus()
		return nil
	}
	s.done = true
	return tea.Quit
}

func (s *Setup) move(delta int) {
	n := len(setupPages[s.page])
	s.focus = (s.focus + delta + n) % n
	s.refocus()
}

// cycle steps the focused choice field and reports whether one was focused.
func (s *Setup) cycle(delta int) bool {
	switch s.current() {
	case fieldLanguage:
		n := len(s.languages)
		s.langIdx = (s.langIdx + delta + n) % n
		return true
	case fieldGender:
		n := len(Genders)
		s.genderIdx = (s.genderIdx + delta + n) % n
		return true
	}
	return false
}

func (s *Setup) refocus() {
	s.wordCount.Blur()
	s.name.Blur()
	s.age.Blur()
	if in := s.input(s.current()); in != nil {
		in.Focus()
	}
}

func (s *Setup) input(field fieldKind) *textinput.Model {
	switch field {
	case fieldWordCount:
		return &s.wordCount
	case fieldName:
		return &s.name
	case fieldAge:
		return &s.age
	}
	return nil
}

func (s *Setup) updateInput(msg tea.Msg) tea.Cmd {
	in := s.input(s.current())
	if in == nil {
		return nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return cmd
}

func (s *Setup) language() string {
	return s.languages[s.langIdx]
}

// label reads a UI caption in the language chosen on the first page.
func (s *Setup) label(section, fallback string) string {
	if v := strings.TrimSpace(s.texts.Section(s.language(), texts.UI, section)); v != "" {
		return v
	}
	return fallback
}

// View implements tea.Model.
func (s *Setup) View() string {
	if s.done || s.cancelled {
		return ""
	}
	var title string
	if s.page == 0 {
		title = s.label(texts.SectionExperimentConfig, "Experiment Config")
	} else {
		title = s.label(texts.SectionParticipantInfo, "Participant Info")
	}

	lines := []string{titleStyle.Render(title), ""}
	for i, field := range setupPages[s.page] {
		lines = append(lines, s.renderField(field, i == s.focus))
	}
	lines = append(lines, "", hintStyle.Render("enter: next  ←/→: choose  esc: cancel"))
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if s.width == 0 || s.height == 0 {
		return content
	}
	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, content)
}

func (s *Setup) renderField(field fieldKind, focused bool) string {
	var label, value string
	switch field {
	case fieldLanguage:
		label = s.label(texts.SectionLanguage, "Language")
		value = choice(s.language(), focused)
	case fieldWordCount:
		label = s.label(texts.SectionWordCount, "Word Count")
		value = s.wordCount.View()
	case fieldName:
		label = s.label(texts.SectionName, "Name")
		value = s.name.View()
	case fieldAge:
		label = s.label(texts.SectionAge, "Age")
		value = s.age.View()
	case fieldGender:
		label = s.label(texts.SectionGender, "Gender")
		value = choice(Genders[s.genderIdx], focused)
	}
	marker := "  "
	style := labelStyle
	if focused {
		marker = focusStyle.Render("> ")
		style = focusStyle
	}
	return marker + style.Width(labelWidth).Render(label) + " " + value
}

func choice(value string, focused bool) string {
	if focused {
		return focusStyle.Render("‹ " + value + " ›")
	}
	return value
}
