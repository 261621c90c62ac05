package domain

import (
	"fmt"
	"strings"
	"time"
)

// CueMode selects which advisory persona is requested.
type CueMode string

const (
	CueModeScript   CueMode = "SCRIPT"
	CueModeStrategy CueMode = "STRATEGY"
)

// Toggle flips between script and strategy mode.
func (m CueMode) Toggle() CueMode {
	if m == CueModeStrategy {
		return CueModeScript
	}
	return CueModeStrategy
}

// Mission is a loaded call objective.
type Mission struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Brief  string `json:"-"`
	Opener string `json:"opener,omitempty"`
}

// MissionEntry is one item of the mission menu.
type MissionEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Disposition is the operator-assigned outcome of a call.
type Disposition string

const (
	DispositionInterested    Disposition = "INTERESTED"
	DispositionNotInterested Disposition = "NOT_INTERESTED"
	DispositionCallback      Disposition = "CALLBACK"
	DispositionClosedWon     Disposition = "CLOSED_WON"
	DispositionBadData       Disposition = "BAD_DATA"
)

// Dispositions lists every disposition in menu order.
func Dispositions() []Disposition {
	return []Disposition{
		DispositionInterested,
		DispositionNotInterested,
		DispositionCallback,
		DispositionClosedWon,
		DispositionBadData,
	}
}

// Label is the human readable form stored in the leads table.
func (d Disposition) Label() string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// ParseDisposition accepts either the enum name or its label.
func ParseDisposition(value string) (Disposition, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, d := range Dispositions() {
		if string(d) == normalized {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown disposition %q", value)
}

// CallRecord is a finished call ready for persistence.
type CallRecord struct {
	MissionName string
	Transcript  string
	Notes       []string
	Email       string
	Name        string
	Disposition Disposition
}

// SaveRequest carries the operator's save dialog input.
type SaveRequest struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Disposition Disposition `json:"disposition"`
}

// SaveDraft pre-fills the save dialog from extracted notes.
type SaveDraft struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Prompt is one advisory engine request.
type Prompt struct {
	Instruction string
	Temperature float64
}

// NoteLine is a displayed note. Key is empty for plain bullets.
type NoteLine struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text"`
}

// CueLine is a timestamped cue shown to the operator.
type CueLine struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Stamp renders the cue timestamp the way the cue panel shows it.
func (c CueLine) Stamp() string {
	return "[" + c.At.Format("15:04:05") + "]"
}

// BoardView is a copy of the visible panels.
type BoardView struct {
	Transcript []string   `json:"transcript"`
	Notes      []NoteLine `json:"notes"`
	Cues       []CueLine  `json:"cues"`
	Status     string     `json:"status"`
	Mode       CueMode    `json:"mode"`
	Dossier    bool       `json:"dossier"`
}

// ErrorCode identifies errors surfaced to the operator.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeMission     ErrorCode = "mission"
	ErrorCodePersistence ErrorCode = "persistence"
	ErrorCodeInternal    ErrorCode = "internal"
)
