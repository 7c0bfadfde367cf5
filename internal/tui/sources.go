// Package tui implements the `list` subcommand's display: a bubbletea
// list of enumerable audio sources.
//
// Adapted from the teacher's internal/tui/devices.go DeviceListModel —
// same viewport/lipgloss scaffold, retargeted from audio.Device (PortAudio
// device records with channel counts and sample rates) to
// audio.SourceDescriptor (name/description pairs, spec.md §3). The
// teacher's ConfigScreen (a per-device sample-rate picker) has no
// analogue here — vis-capture sources have no per-source configuration
// surface — so only the list screen survives.
package tui

import (
	"fmt"
	"strings"

	"viscapture/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// SourceListModel is the Bubble Tea model for listing capture sources.
type SourceListModel struct {
	sources       []audio.SourceDescriptor
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
}

func (m SourceListModel) Init() tea.Cmd {
	return fetchSources
}

type sourcesMsg struct {
	sources []audio.SourceDescriptor
}

type errMsg struct {
	err error
}

func fetchSources() tea.Msg {
	if err := audio.Initialize(); err != nil {
		return errMsg{err}
	}
	defer audio.Terminate()

	sources, err := audio.Enumerate()
	if err != nil {
		return errMsg{err}
	}
	return sourcesMsg{sources}
}

func (m SourceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			if len(m.sources) > 0 {
				m.viewport.SetContent(m.renderSources())
			}
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case sourcesMsg:
		m.sources = msg.sources
		if m.ready {
			m.viewport.SetContent(m.renderSources())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderSources())
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < len(m.sources)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderSources())
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m SourceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title := titleStyle.Render("Audio Sources")
	help := infoStyle.Render("↑/↓: Navigate • q: Quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m SourceListModel) renderSources() string {
	var sb strings.Builder

	if len(m.sources) == 0 {
		return "No audio sources found."
	}

	for i, source := range m.sources {
		line := fmt.Sprintf("[%d] %s\n    %s\n", i, source.Name, source.Description)
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

// NewSourceListModel creates a new source list model.
func NewSourceListModel() SourceListModel {
	return SourceListModel{selectedIndex: 0}
}

// StartSourceListUI launches the Bubble Tea TUI for listing sources.
func StartSourceListUI() error {
	p := tea.NewProgram(
		NewSourceListModel(),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
