// Package advice builds advisory prompts and turns raw advisory responses
// into display instructions.
package advice

import (
	"strings"
	"time"
)

const (
	NoteTag = "[NOTE]:"
	CueTag  = "[CUE]:"

	cueBoundary = "[CUE]"
	cueCut      = "|"
	errorPrefix = "ERROR:"
)

// Instruction is one change to the notes or cue panel.
type Instruction interface {
	isInstruction()
}

// NoteBullet shows a note line as a plain bullet.
type NoteBullet struct {
	Text string
}

// NoteKeyValue shows a note with a bold key.
type NoteKeyValue struct {
	Key   string
	Value string
	Text  string
}

// Cue appends a timestamped line to the cue panel.
type Cue struct {
	Text string
	At   time.Time
}

func (NoteBullet) isInstruction()   {}
func (NoteKeyValue) isInstruction() {}
func (Cue) isInstruction()          {}

// NoteSet is the de-duplicating note store the parser records into.
type NoteSet interface {
	Add(line string) bool
}

// Parse extracts notes and at most one cue from raw. New notes are added to
// notes; only notes that were actually added produce an instruction.
func Parse(raw string, notes NoteSet, now time.Time) []Instruction {
	var out []Instruction

	if section, ok := noteSection(raw); ok {
		for _, line := range strings.Split(section, "\n") {
			line = cleanNoteLine(line)
			if line == "" || !notes.Add(line) {
				continue
			}
			out = append(out, noteInstruction(line))
		}
	}

	if text, ok := cueText(raw); ok {
		out = append(out, Cue{Text: text, At: now})
	} else if !strings.Contains(raw, NoteTag) && strings.HasPrefix(strings.TrimSpace(raw), errorPrefix) {
		out = append(out, Cue{Text: strings.TrimSpace(raw), At: now})
	}

	return out
}

// noteSection returns the text after the first note tag up to the next cue
// boundary.
func noteSection(raw string) (string, bool) {
	_, after, ok := strings.Cut(raw, NoteTag)
	if !ok {
		return "", false
	}
	if before, _, found := strings.Cut(after, cueBoundary); found {
		after = before
	}
	return strings.TrimSpace(after), true
}

func cleanNoteLine(line string) string {
	line = strings.TrimSpace(line)
	for strings.HasPrefix(line, NoteTag) {
		line = strings.TrimSpace(strings.TrimPrefix(line, NoteTag))
	}
	return line
}

func noteInstruction(line string) Instruction {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return NoteBullet{Text: line}
	}
	return NoteKeyValue{
		Key:   strings.TrimSpace(key),
		Value: strings.TrimSpace(value),
		Text:  line,
	}
}

// cueText returns the cue between the first cue tag and the next cue tag or
// pipe, with whitespace and quotes trimmed.
func cueText(raw string) (string, bool) {
	_, after, ok := strings.Cut(raw, CueTag)
	if !ok {
		return "", false
	}
	if before, _, found := strings.Cut(after, CueTag); found {
		after = before
	}
	if before, _, found := strings.Cut(after, cueCut); found {
		after = before
	}
	text := strings.TrimSpace(after)
	text = strings.Trim(text, "\"“”")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}
