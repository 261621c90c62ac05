// Package session holds the authoritative in-memory record of the current
// engagement: mission, dossier, bounded history and extracted notes.
package session

import (
	"strings"
	"sync"
	"unicode"

	"callcopilot/internal/domain"
)

const (
	// DefaultHistorySize bounds the conversation history.
	DefaultHistorySize = 20

	// NoMissionName is shown while no mission is loaded.
	NoMissionName = "NONE"

	OperatorPrefix    = "[ME]: "
	CounterpartPrefix = "[THEM]: "
)

// Snapshot is an immutable copy of the state an advisory task works from.
type Snapshot struct {
	Mission domain.Mission
	Dossier string
	History []string
	Mode    domain.CueMode
}

// State is guarded by a single mutex; the capture side appends history
// while the UI goroutine loads, resets and records notes.
type State struct {
	mu      sync.Mutex
	limit   int
	mission *domain.Mission
	dossier string
	history []string
	notes   *Notes
	mode    domain.CueMode
}

func New(historySize int) *State {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &State{
		limit: historySize,
		notes: NewNotes(),
		mode:  domain.CueModeScript,
	}
}

// Reset returns the state to its empty form, dossier included.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.dossier = ""
}

// Load resets everything except the dossier, activates the mission and
// seeds history with the opener line.
func (s *State) Load(mission domain.Mission, opener string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	m := mission
	s.mission = &m
	if opener != "" {
		s.appendLocked(OperatorPrefix + opener)
	}
}

func (s *State) clear() {
	s.mission = nil
	s.history = nil
	s.notes = NewNotes()
	s.mode = domain.CueModeScript
}

// MissionName returns the active mission name or NoMissionName.
func (s *State) MissionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mission == nil {
		return NoMissionName
	}
	return s.mission.Name
}

func (s *State) HasMission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mission != nil
}

func (s *State) Dossier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossier
}

// SetDossier stores trimmed dossier text and reports whether any remains.
func (s *State) SetDossier(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dossier = strings.TrimSpace(text)
	return s.dossier != ""
}

func (s *State) Mode() domain.CueMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ToggleMode flips the cue mode without touching history or notes.
func (s *State) ToggleMode() domain.CueMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Toggle()
	return s.mode
}

// appendLocked adds one line, evicting the oldest past the bound.
func (s *State) appendLocked(line string) {
	s.history = append(s.history, line)
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append([]string(nil), s.history[over:]...)
	}
}

func (s *State) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// BeginAdvice checks the mission gate, appends the counterpart line and
// snapshots the state in one critical section. It returns false, leaving
// the state untouched, when no mission is loaded.
func (s *State) BeginAdvice(trigger string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mission == nil {
		return Snapshot{}, false
	}
	s.appendLocked(CounterpartPrefix + trigger)
	return Snapshot{
		Mission: *s.mission,
		Dossier: s.dossier,
		History: append([]string(nil), s.history...),
		Mode:    s.mode,
	}, true
}

// UpdateNotes runs fn with exclusive access to the note set.
func (s *State) UpdateNotes(fn func(notes *Notes)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.notes)
}

// NoteLines returns the notes in insertion order.
func (s *State) NoteLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes.Lines()
}

// Notes is an insertion-ordered set keyed by NormalizeNote.
type Notes struct {
	keys  map[string]struct{}
	lines []string
}

func NewNotes() *Notes {
	return &Notes{keys: make(map[string]struct{})}
}

// Add records line unless a note with the same normalized key exists.
func (n *Notes) Add(line string) bool {
	key := NormalizeNote(line)
	if _, ok := n.keys[key]; ok {
		return false
	}
	n.keys[key] = struct{}{}
	n.lines = append(n.lines, line)
	return true
}

func (n *Notes) Len() int {
	return len(n.lines)
}

func (n *Notes) Lines() []string {
	return append([]string(nil), n.lines...)
}

// NormalizeNote drops everything but letters and digits and case-folds.
func NormalizeNote(line string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, line)
}
