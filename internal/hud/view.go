package hud

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"callcopilot/internal/domain"
)

type styles struct {
	title   lipgloss.Style
	status  lipgloss.Style
	mode    lipgloss.Style
	pane    lipgloss.Style
	heading lipgloss.Style
	stamp   lipgloss.Style
	noteKey lipgloss.Style
	help    lipgloss.Style
	notice  lipgloss.Style
	form    lipgloss.Style
	active  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58A6FF")),
		status:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950")),
		mode:    lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922")),
		pane:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#30363D")).Padding(0, 1),
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B949E")),
		stamp:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E")),
		noteKey: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#79C0FF")),
		help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7681")),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")),
		form:    lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#58A6FF")).Padding(1, 2),
		active:  lipgloss.NewStyle().Reverse(true),
	}
}

// chrome is the number of rows outside the panes: header, menu, footer and
// the pane borders and headings.
const chrome = 6

func (m *Model) setSize(width, height int) {
	m.width, m.height = width, height

	paneHeight := max(height-chrome, 3)
	transcriptWidth, cueWidth, noteWidth := paneWidths(width)

	m.transcriptPane.Width, m.transcriptPane.Height = transcriptWidth, paneHeight
	m.cuePane.Width, m.cuePane.Height = cueWidth, paneHeight
	m.notePane.Width, m.notePane.Height = noteWidth, paneHeight
	m.dossierInput.SetWidth(max(width-12, 20))
	m.dossierInput.SetHeight(max(height-12, 4))
	m.refresh()
}

// paneWidths splits the inner width 1:2:1 between transcript, cues and notes.
// Each pane loses four columns to its border and padding.
func paneWidths(width int) (int, int, int) {
	inner := max(width-12, 12)
	transcript := inner / 4
	cue := inner / 2
	return transcript, cue, inner - transcript - cue
}

func (m Model) View() string {
	if m.width == 0 {
		return "starting copilot..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.menu())
	b.WriteString("\n")

	switch m.form {
	case formDossier:
		b.WriteString(m.styles.form.Render(m.styles.heading.Render("CALL CONTEXT") + "\n\n" + m.dossierInput.View()))
	case formSave:
		b.WriteString(m.saveFormView())
	default:
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.pane("TRANSCRIPT", m.transcriptPane.View()),
			m.pane("CUES", m.cuePane.View()),
			m.pane("NOTES", m.notePane.View()),
		))
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) header() string {
	context := "CONTEXT"
	if m.dossier {
		context = "CONTEXT ✅"
	}
	return strings.Join([]string{
		m.styles.title.Render("CALL COPILOT"),
		m.styles.mode.Render("MODE: " + string(m.mode)),
		context,
		m.styles.status.Render(m.status),
	}, "  │  ")
}

func (m Model) menu() string {
	if len(m.missions) == 0 {
		return m.styles.help.Render("no missions configured")
	}
	items := make([]string, 0, len(m.missions))
	for i, mission := range m.missions {
		if i >= 9 {
			break
		}
		items = append(items, fmt.Sprintf("[%d] %s", i+1, mission.Label))
	}
	return strings.Join(items, "   ")
}

func (m Model) pane(title, body string) string {
	return m.styles.pane.Render(m.styles.heading.Render(title) + "\n" + body)
}

func (m Model) footer() string {
	var help string
	switch m.form {
	case formDossier:
		help = "ctrl+s save context • esc cancel"
	case formSave:
		help = "tab next field • ←/→ outcome • enter save • esc cancel"
	default:
		help = "space advice • 1-9 mission • t mode • c context • s save • r reset • q quit"
	}
	line := m.styles.help.Render(help)
	if m.notice != "" {
		line += "  " + m.styles.notice.Render(m.notice)
	}
	return line
}

func (m Model) saveFormView() string {
	var outcomes []string
	for i, d := range domain.Dispositions() {
		label := d.Label()
		if i == m.disposition {
			label = m.styles.active.Render(label)
		}
		outcomes = append(outcomes, label)
	}

	marker := func(field int) string {
		if m.focus == field {
			return "▸ "
		}
		return "  "
	}

	body := strings.Join([]string{
		m.styles.heading.Render("SAVE CALL"),
		"",
		marker(fieldName) + "Name     " + m.nameInput.View(),
		marker(fieldEmail) + "Email    " + m.emailInput.View(),
		marker(fieldDisposition) + "Outcome  " + strings.Join(outcomes, "  "),
	}, "\n")
	return m.styles.form.Render(body)
}
