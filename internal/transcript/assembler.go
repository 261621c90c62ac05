package transcript

import (
	"strings"

	"callcopilot/internal/domain"
)

// utteranceAssembler joins final segments until the provider reports the
// end of the speaker's turn. It is used from a single goroutine.
type utteranceAssembler struct {
	finals      []string
	lastPartial string
}

// Add folds ev into the pending utterance and returns it once complete.
func (a *utteranceAssembler) Add(ev domain.TranscriptEvent) (string, bool) {
	text := strings.TrimSpace(ev.Text)
	switch ev.Kind {
	case domain.TranscriptKindPartial:
		if text != "" {
			a.lastPartial = text
		}
		return "", false
	case domain.TranscriptKindFinal:
		if text != "" {
			a.finals = append(a.finals, text)
			a.lastPartial = ""
		}
		if ev.IsSpeechFinal {
			return a.flush()
		}
		return "", false
	case domain.TranscriptKindUtteranceEnd:
		return a.flush()
	default:
		return "", false
	}
}

// Drain returns whatever is pending when the stream ends. A trailing partial
// counts when no final segment arrived.
func (a *utteranceAssembler) Drain() (string, bool) {
	if len(a.finals) == 0 && a.lastPartial != "" {
		a.finals = append(a.finals, a.lastPartial)
	}
	return a.flush()
}

func (a *utteranceAssembler) flush() (string, bool) {
	text := strings.TrimSpace(strings.Join(a.finals, " "))
	a.finals = nil
	a.lastPartial = ""
	return text, text != ""
}
