// Package hud is a terminal surface for the copilot: transcript, cue and note
// panes with single-key commands.
package hud

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"callcopilot/internal/domain"
	"callcopilot/internal/usecase"
)

// Copilot is the command surface the HUD drives.
type Copilot interface {
	Missions() []domain.MissionEntry
	LoadMission(ctx context.Context, key string) error
	ToggleMode(ctx context.Context) (domain.CueMode, error)
	Reset(ctx context.Context) error
	RequestAdvice(ctx context.Context)
	SetDossier(ctx context.Context, text string) (bool, error)
	Dossier() string
	SaveDraft(ctx context.Context) (domain.SaveDraft, error)
	SaveCall(ctx context.Context, req domain.SaveRequest) error
}

type form int

const (
	formNone form = iota
	formDossier
	formSave
)

const (
	fieldName = iota
	fieldEmail
	fieldDisposition
	fieldCount
)

type resultMsg struct {
	what string
	err  error
}

type draftMsg struct {
	draft domain.SaveDraft
	err   error
}

// Model is the bubbletea model of the HUD.
type Model struct {
	copilot Copilot
	ctx     context.Context
	styles  styles

	width  int
	height int

	transcriptPane viewport.Model
	cuePane        viewport.Model
	notePane       viewport.Model

	transcript []string
	cues       []string
	notes      []string
	cueIdle    bool
	notesIdle  bool

	missions []domain.MissionEntry
	status   string
	mode     domain.CueMode
	dossier  bool
	notice   string

	form         form
	dossierInput textarea.Model
	nameInput    textinput.Model
	emailInput   textinput.Model
	disposition  int
	focus        int
}

func NewModel(ctx context.Context, copilot Copilot) Model {
	dossier := textarea.New()
	dossier.Placeholder = "Paste what you know about this lead..."
	dossier.CharLimit = 0

	name := textinput.New()
	name.Placeholder = "Lead name"
	email := textinput.New()
	email.Placeholder = "email@company.com"

	m := Model{
		copilot:        copilot,
		ctx:            ctx,
		styles:         defaultStyles(),
		transcriptPane: viewport.New(0, 0),
		cuePane:        viewport.New(0, 0),
		notePane:       viewport.New(0, 0),
		missions:       copilot.Missions(),
		mode:           domain.CueModeScript,
		dossierInput:   dossier,
		nameInput:      name,
		emailInput:     email,
	}
	m.resetPanels()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
	case transcriptMsg:
		m.transcript = append(m.transcript, string(msg))
		m.refresh()
	case noteMsg:
		if m.notesIdle {
			m.notes, m.notesIdle = nil, false
		}
		m.notes = append(m.notes, m.formatNote(domain.NoteLine(msg)))
		m.refresh()
	case cueMsg:
		if m.cueIdle {
			m.cues, m.cueIdle = nil, false
		}
		cue := domain.CueLine(msg)
		m.cues = append(m.cues, m.styles.stamp.Render(cue.Stamp())+" "+cue.Text)
		m.refresh()
	case resetMsg:
		m.resetPanels()
	case statusMsg:
		m.status = string(msg)
	case modeMsg:
		m.mode = domain.CueMode(msg)
	case dossierMsg:
		m.dossier = bool(msg)
	case missionsMsg:
		m.missions = []domain.MissionEntry(msg)
	case errorMsg:
		m.notice = errorNotice(msg.code, msg.detail)
	case resultMsg:
		if msg.err != nil {
			m.notice = msg.what + ": " + msg.err.Error()
		} else {
			m.notice = ""
		}
	case draftMsg:
		if msg.err != nil {
			m.notice = draftNotice(msg.err)
			return m, nil
		}
		return m.openSaveForm(msg.draft)
	case tea.KeyMsg:
		if m.form != formNone {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ":
		return m, m.run("advice", func(ctx context.Context) error {
			m.copilot.RequestAdvice(ctx)
			return nil
		})
	case "t":
		return m, m.run("mode", func(ctx context.Context) error {
			_, err := m.copilot.ToggleMode(ctx)
			return err
		})
	case "r":
		return m, m.run("reset", m.copilot.Reset)
	case "c":
		m.form = formDossier
		m.dossierInput.SetValue(m.copilot.Dossier())
		cmd := m.dossierInput.Focus()
		return m, cmd
	case "s":
		ctx, copilot := m.ctx, m.copilot
		return m, func() tea.Msg {
			draft, err := copilot.SaveDraft(ctx)
			return draftMsg{draft: draft, err: err}
		}
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.cuePane, cmd = m.cuePane.Update(msg)
		return m, cmd
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		index := int(key[0] - '1')
		if index < len(m.missions) {
			mission := m.missions[index].Key
			return m, m.run("mission", func(ctx context.Context) error {
				return m.copilot.LoadMission(ctx, mission)
			})
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.closeForm()
		return m, nil
	}

	var cmd tea.Cmd
	if m.form == formDossier {
		if msg.String() == "ctrl+s" {
			text := m.dossierInput.Value()
			m.closeForm()
			return m, m.run("context", func(ctx context.Context) error {
				_, err := m.copilot.SetDossier(ctx, text)
				return err
			})
		}
		m.dossierInput, cmd = m.dossierInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "tab", "shift+tab":
		step := 1
		if msg.String() == "shift+tab" {
			step = fieldCount - 1
		}
		cmd = m.focusField((m.focus + step) % fieldCount)
		return m, cmd
	case "enter":
		req := domain.SaveRequest{
			Name:        strings.TrimSpace(m.nameInput.Value()),
			Email:       strings.TrimSpace(m.emailInput.Value()),
			Disposition: domain.Dispositions()[m.disposition],
		}
		m.closeForm()
		return m, m.run("save", func(ctx context.Context) error {
			return m.copilot.SaveCall(ctx, req)
		})
	}

	switch m.focus {
	case fieldName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case fieldEmail:
		m.emailInput, cmd = m.emailInput.Update(msg)
	case fieldDisposition:
		count := len(domain.Dispositions())
		switch msg.String() {
		case "right", "l", "down":
			m.disposition = (m.disposition + 1) % count
		case "left", "h", "up":
			m.disposition = (m.disposition + count - 1) % count
		}
	}
	return m, cmd
}

func (m Model) openSaveForm(draft domain.SaveDraft) (tea.Model, tea.Cmd) {
	m.form = formSave
	m.nameInput.SetValue(draft.Name)
	m.emailInput.SetValue(draft.Email)
	m.disposition = 0
	cmd := m.focusField(fieldName)
	return m, cmd
}

func (m *Model) focusField(field int) tea.Cmd {
	m.focus = field
	m.nameInput.Blur()
	m.emailInput.Blur()
	switch field {
	case fieldName:
		return m.nameInput.Focus()
	case fieldEmail:
		return m.emailInput.Focus()
	}
	return nil
}

func (m *Model) closeForm() {
	m.form = formNone
	m.dossierInput.Blur()
	m.nameInput.Blur()
	m.emailInput.Blur()
}

// run executes a copilot command off the bubbletea goroutine.
func (m Model) run(what string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{what: what, err: fn(ctx)}
	}
}

func (m *Model) resetPanels() {
	cue, notes := usecase.Placeholders()
	m.transcript = nil
	m.cues, m.cueIdle = []string{cue}, true
	m.notes, m.notesIdle = []string{notes}, true
	m.refresh()
}

func (m *Model) refresh() {
	m.transcriptPane.SetContent(strings.Join(m.transcript, "\n"))
	m.transcriptPane.GotoBottom()
	m.cuePane.SetContent(strings.Join(m.cues, "\n\n"))
	m.cuePane.GotoBottom()
	m.notePane.SetContent(strings.Join(m.notes, "\n"))
	m.notePane.GotoBottom()
}

func (m Model) formatNote(note domain.NoteLine) string {
	if note.Key != "" {
		return m.styles.noteKey.Render(note.Key+":") + " " + note.Value
	}
	return "• " + note.Text
}

func errorNotice(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeMission:
		return "Mission error: " + detail
	case domain.ErrorCodePersistence:
		return "Save failed: " + detail
	case domain.ErrorCodeStartup:
		return "Startup failed: " + detail
	default:
		return "Error: " + detail
	}
}

func draftNotice(err error) string {
	if errors.Is(err, usecase.ErrNothingToSave) {
		return "Nothing to save yet."
	}
	return "save: " + err.Error()
}
